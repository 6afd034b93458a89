package renderer

import "github.com/spaghettifunk/kiln/engine/renderer/metadata"

// RenderStateHandles references the blend, depth and rasterizer objects of one
// render state configuration. They are shared by every user of that configuration.
type RenderStateHandles struct {
	Blend      metadata.StateHandle
	Depth      metadata.StateHandle
	Rasterizer metadata.StateHandle
}

// stateCache keeps one device object per distinct state description.
type stateCache struct {
	r          *Renderer
	blend      map[metadata.BlendState]metadata.StateHandle
	depth      map[metadata.DepthState]metadata.StateHandle
	rasterizer map[metadata.RasterizerState]metadata.StateHandle
}

func newStateCache(r *Renderer) *stateCache {
	return &stateCache{
		r:          r,
		blend:      make(map[metadata.BlendState]metadata.StateHandle),
		depth:      make(map[metadata.DepthState]metadata.StateHandle),
		rasterizer: make(map[metadata.RasterizerState]metadata.StateHandle),
	}
}

func (c *stateCache) acquire(cfg metadata.RenderStateConfig) RenderStateHandles {
	var out RenderStateHandles
	var res metadata.Result

	if h, ok := c.blend[cfg.Blend]; ok {
		out.Blend = h
	} else {
		out.Blend, res = c.r.backend.BlendStateCreate(cfg.Blend)
		c.r.check(res, "BlendStateCreate", 3)
		c.blend[cfg.Blend] = out.Blend
	}

	if h, ok := c.depth[cfg.Depth]; ok {
		out.Depth = h
	} else {
		out.Depth, res = c.r.backend.DepthStateCreate(cfg.Depth)
		c.r.check(res, "DepthStateCreate", 3)
		c.depth[cfg.Depth] = out.Depth
	}

	if h, ok := c.rasterizer[cfg.Rasterizer]; ok {
		out.Rasterizer = h
	} else {
		out.Rasterizer, res = c.r.backend.RasterizerStateCreate(cfg.Rasterizer)
		c.r.check(res, "RasterizerStateCreate", 3)
		c.rasterizer[cfg.Rasterizer] = out.Rasterizer
	}
	return out
}

func (c *stateCache) len() int {
	return len(c.blend) + len(c.depth) + len(c.rasterizer)
}

func (c *stateCache) destroy() {
	for k, h := range c.blend {
		c.r.check(c.r.backend.StateDestroy(h), "StateDestroy(blend)", 2)
		delete(c.blend, k)
	}
	for k, h := range c.depth {
		c.r.check(c.r.backend.StateDestroy(h), "StateDestroy(depth)", 2)
		delete(c.depth, k)
	}
	for k, h := range c.rasterizer {
		c.r.check(c.r.backend.StateDestroy(h), "StateDestroy(rasterizer)", 2)
		delete(c.rasterizer, k)
	}
}
