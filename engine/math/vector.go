package math

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3One() Vec3 {
	return Vec3{1, 1, 1}
}

func NewVec3Up() Vec3 {
	return Vec3{0, 1, 0}
}

func NewVec3Down() Vec3 {
	return Vec3{0, -1, 0}
}

func NewVec3Forward() Vec3 {
	return Vec3{0, 0, -1}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{v.X * other.X, v.Y * other.Y, v.Z * other.Z}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{v.X * scalar, v.Y * scalar, v.Z * scalar}
}

func (v Vec3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float32 {
	return ksqrt(v.LengthSquared())
}

/**
 * @brief Returns a unit length copy of v. The zero vector is returned unchanged.
 */
func (v Vec3) Normalized() Vec3 {
	length := v.Length()
	if length == 0 {
		return v
	}
	return Vec3{v.X / length, v.Y / length, v.Z / length}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

/**
 * @brief Returns a vector orthogonal to both v and other.
 */
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Compare reports whether every component differs by at most tolerance.
func (v Vec3) Compare(other Vec3, tolerance float32) bool {
	return kabs(v.X-other.X) <= tolerance &&
		kabs(v.Y-other.Y) <= tolerance &&
		kabs(v.Z-other.Z) <= tolerance
}

func (v Vec3) Distance(other Vec3) float32 {
	return v.Sub(other).Length()
}

// Lerp moves from v toward target by t.
func (v Vec3) Lerp(target Vec3, t float32) Vec3 {
	return Vec3{
		Lerp(v.X, target.X, t),
		Lerp(v.Y, target.Y, t),
		Lerp(v.Z, target.Z, t),
	}
}

/**
 * @brief Transforms the point v by m, as if it had a w component of 1.
 */
func (v Vec3) Transform(m Mat4) Vec3 {
	return Vec3{
		X: v.X*m.Data[0] + v.Y*m.Data[4] + v.Z*m.Data[8] + m.Data[12],
		Y: v.X*m.Data[1] + v.Y*m.Data[5] + v.Z*m.Data[9] + m.Data[13],
		Z: v.X*m.Data[2] + v.Y*m.Data[6] + v.Z*m.Data[10] + m.Data[14],
	}
}

func (v Vec3) ToVec4(w float32) Vec4 {
	return Vec4{v.X, v.Y, v.Z, w}
}

func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{X: x, Y: y, Z: z, W: w}
}

func NewVec4One() Vec4 {
	return Vec4{1, 1, 1, 1}
}

func (v Vec4) ToVec3() Vec3 {
	return Vec3{v.X, v.Y, v.Z}
}

// Array returns the components in x, y, z, w order.
func (v Vec4) Array() [4]float32 {
	return [4]float32{v.X, v.Y, v.Z, v.W}
}

func (v Vec4) Compare(other Vec4, tolerance float32) bool {
	return v.ToVec3().Compare(other.ToVec3(), tolerance) && kabs(v.W-other.W) <= tolerance
}
