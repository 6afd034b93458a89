// Package assets indexes material files on disk, loads them and reloads them
// when they change.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/kiln/engine/assets/loaders"
	"github.com/spaghettifunk/kiln/engine/containers"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/material"
	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
	"github.com/spaghettifunk/kiln/engine/systems"
)

var (
	ErrClosed           = errors.New("asset manager already closed")
	ErrMaterialNotFound = errors.New("material not found")
	ErrTextureNotFound  = errors.New("texture not found")
)

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Keeps the materials found under a directory. With watching enabled
 * a goroutine parses changed files and queues them; ApplyReloads swaps the
 * new values in on the caller's goroutine, so materials are only mutated by
 * the render loop.
 */
type AssetManager struct {
	logger  *core.Logger
	jobs    *systems.JobSystem
	loaders map[loaders.ResourceType]Loader

	mutex  sync.Mutex
	assets map[string]AssetInfo
	// pending holds parsed reloads by path until ApplyReloads.
	pending map[string]*material.Material

	materials map[string]*material.Material
	byPath    map[string]string
	textures  map[string]*loaders.TextureInfo

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

// NewAssetManager builds an empty manager. With jobs set, Initialize parses
// the files on the job workers.
func NewAssetManager(logger *core.Logger, jobs *systems.JobSystem) *AssetManager {
	am := &AssetManager{
		logger:    logger,
		jobs:      jobs,
		loaders:   make(map[loaders.ResourceType]Loader),
		assets:    make(map[string]AssetInfo),
		pending:   make(map[string]*material.Material),
		materials: make(map[string]*material.Material),
		byPath:    make(map[string]string),
		textures:  make(map[string]*loaders.TextureInfo),
		done:      make(chan struct{}),
	}
	am.registerLoader(loaders.ResourceTypeMaterial, &loaders.MaterialLoader{})
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeTexture, &loaders.TextureLoader{})
	return am
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Initialize loads every material and texture header under dir. With watch
// set, the directory tree is watched for changes until Close.
func (am *AssetManager) Initialize(dir string, watch bool) error {
	if am.isClosed {
		return ErrClosed
	}
	var paths, textures []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch loaders.DetermineResourceType(path) {
		case loaders.ResourceTypeMaterial:
			paths = append(paths, path)
		case loaders.ResourceTypeTexture:
			textures = append(textures, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := am.loadTextures(textures); err != nil {
		return err
	}
	if err := am.loadMaterials(paths); err != nil {
		return err
	}
	am.logger.Info("materials loaded", "dir", dir, "count", len(am.materials), "textures", len(am.textures))
	for _, name := range am.MaterialNames() {
		am.checkTextures(am.materials[name])
	}

	if !watch {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = w
	if err := am.watchRecursive(dir); err != nil {
		w.Close()
		am.fsnotify = nil
		return err
	}
	am.wg.Add(1)
	go am.start()
	return nil
}

// LoadAsset runs the loader registered for the file type of path.
func (am *AssetManager) LoadAsset(path string) (*loaders.Resource, error) {
	resourceType := loaders.DetermineResourceType(path)
	loader, ok := am.loaders[resourceType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %q", path)
	}
	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: resourceType, LastLoaded: time.Now()}
	am.mutex.Unlock()
	return res, nil
}

type loadedMaterial struct {
	path     string
	material *material.Material
}

// loadMaterials parses every path and installs the results in path order.
func (am *AssetManager) loadMaterials(paths []string) error {
	loaded := make([]loadedMaterial, 0, len(paths))
	if am.jobs == nil {
		for _, path := range paths {
			m, err := am.loadMaterial(path)
			if err != nil {
				return err
			}
			loaded = append(loaded, loadedMaterial{path: path, material: m})
		}
	} else {
		var errs []error
		for _, path := range paths {
			path := path
			job := systems.JobTask{
				Name: "load " + path,
				OnStart: func() (interface{}, error) {
					return am.loadMaterial(path)
				},
				OnComplete: func(result interface{}) {
					loaded = append(loaded, loadedMaterial{path: path, material: result.(*material.Material)})
				},
				OnFailure: func(err error) {
					errs = append(errs, err)
				},
			}
			err := am.jobs.Submit(job)
			if errors.Is(err, containers.ErrQueueFull) {
				am.jobs.Flush()
				err = am.jobs.Submit(job)
			}
			if err != nil {
				return err
			}
		}
		am.jobs.Flush()
		if err := errors.Join(errs...); err != nil {
			return err
		}
	}

	sort.Slice(loaded, func(i, j int) bool { return loaded[i].path < loaded[j].path })
	for _, l := range loaded {
		am.install(l.path, l.material)
	}
	return nil
}

func (am *AssetManager) loadTextures(paths []string) error {
	for _, path := range paths {
		res, err := am.LoadAsset(path)
		if err != nil {
			return err
		}
		info := res.Data.(*loaders.TextureInfo)
		if _, ok := am.textures[info.Name]; ok {
			return fmt.Errorf("texture %q found twice, again at %s", info.Name, path)
		}
		am.textures[info.Name] = info
	}
	return nil
}

// checkTextures warns about texture parameters of m naming no texture file.
func (am *AssetManager) checkTextures(m *material.Material) {
	for _, p := range m.Parameters() {
		if p.Type != metadata.ShaderParameterTexture {
			continue
		}
		if _, ok := am.textures[p.Texture]; !ok {
			am.logger.Warn("material references a missing texture", "material", m.Name, "parameter", p.Name, "texture", p.Texture)
		}
	}
}

// Texture returns the header of the named texture.
func (am *AssetManager) Texture(name string) (*loaders.TextureInfo, error) {
	t, ok := am.textures[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTextureNotFound, name)
	}
	return t, nil
}

func (am *AssetManager) loadMaterial(path string) (*material.Material, error) {
	res, err := am.LoadAsset(path)
	if err != nil {
		return nil, err
	}
	return res.Data.(*material.Material), nil
}

func (am *AssetManager) install(path string, m *material.Material) {
	if existing, ok := am.materials[m.Name]; ok {
		existing.CopyFrom(m)
	} else {
		am.materials[m.Name] = m
	}
	am.byPath[path] = m.Name
}

// Material returns the named material.
func (am *AssetManager) Material(name string) (*material.Material, error) {
	m, ok := am.materials[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMaterialNotFound, name)
	}
	return m, nil
}

// MaterialNames returns the loaded material names, sorted.
func (am *AssetManager) MaterialNames() []string {
	names := make([]string, 0, len(am.materials))
	for name := range am.materials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

/**
 * @brief Installs the materials reloaded since the previous call. Existing
 * materials are updated in place so every holder sees the new values.
 *
 * @return The names of the updated materials, sorted.
 */
func (am *AssetManager) ApplyReloads() []string {
	am.mutex.Lock()
	pending := am.pending
	am.pending = make(map[string]*material.Material)
	am.mutex.Unlock()

	names := make([]string, 0, len(pending))
	for path, m := range pending {
		am.install(path, m)
		am.checkTextures(m)
		names = append(names, m.Name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		am.logger.Info("materials reloaded", "names", names)
	}
	return names
}

// Close stops watching. The loaded materials stay available.
func (am *AssetManager) Close() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.wg.Wait()
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	defer am.fsnotify.Close()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			am.logger.Error("asset watcher failed", "err", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				am.logger.Warn("cannot watch new directory", "dir", e.Name, "err", err)
			}
			return
		}
	}
	if loaders.DetermineResourceType(e.Name) != loaders.ResourceTypeMaterial {
		return
	}
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		m, err := am.loadMaterial(e.Name)
		if err != nil {
			// Editors often write files in several steps; the next write retries.
			am.logger.Warn("material reload failed, keeping the previous version", "path", e.Name, "err", err)
			return
		}
		am.mutex.Lock()
		am.pending[e.Name] = m
		am.mutex.Unlock()
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		am.mutex.Lock()
		delete(am.assets, e.Name)
		delete(am.pending, e.Name)
		am.mutex.Unlock()
		am.logger.Warn("material file removed, keeping the loaded version", "path", e.Name)
	}
}

// watchRecursive adds dir and all of its sub-directories to the watch list.
func (am *AssetManager) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(path)
		}
		return nil
	})
}
