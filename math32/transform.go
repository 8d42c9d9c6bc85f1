package math32

// Quaternion is a unit rotation.
type Quaternion struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
	W float32 `json:"w" yaml:"w"`
}

// IdentityQuaternion is the no-op rotation.
var IdentityQuaternion = Quaternion{0, 0, 0, 1}

// IsZero reports whether q is the zero value, which is treated as identity.
func (q Quaternion) IsZero() bool {
	return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0
}

// Normalize returns q scaled to unit length.
func (q Quaternion) Normalize() Quaternion {
	if q.IsZero() {
		return IdentityQuaternion
	}
	l := Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	return Quaternion{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Conjugate returns the inverse of a unit quaternion.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{-q.X, -q.Y, -q.Z, q.W}
}

// Rotate rotates v by q.
func (q Quaternion) Rotate(v Vector3) Vector3 {
	u := Vector3{q.X, q.Y, q.Z}
	// v' = v + 2w(u x v) + 2(u x (u x v))
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.W)).Add(u.Cross(t))
}

// Transform is a translation, rotation and scale.
type Transform struct {
	Position Vector3    `json:"position" yaml:"position"`
	Rotation Quaternion `json:"rotation" yaml:"rotation"`
	Scale    Vector3    `json:"scale" yaml:"scale"`
}

// IdentityTransform places local space on top of world space.
var IdentityTransform = Transform{Rotation: IdentityQuaternion, Scale: One}

// NewTransform creates a transform with unit scale.
func NewTransform(position Vector3, rotation Quaternion) Transform {
	return Transform{Position: position, Rotation: rotation.Normalize(), Scale: One}
}

// Normalized fills zero rotation and zero scale with identity values.
func (t Transform) Normalized() Transform {
	t.Rotation = t.Rotation.Normalize()
	if t.Scale.IsZero() {
		t.Scale = One
	}
	return t
}

// TransformPoint maps a local point to world space.
func (t Transform) TransformPoint(p Vector3) Vector3 {
	t = t.Normalized()
	return t.Rotation.Rotate(p.MulVec(t.Scale)).Add(t.Position)
}

// InverseTransformPoint maps a world point to local space.
func (t Transform) InverseTransformPoint(p Vector3) Vector3 {
	t = t.Normalized()
	return t.Rotation.Conjugate().Rotate(p.Sub(t.Position)).DivVec(t.Scale)
}

// TransformDirection rotates a local direction to world space, ignoring scale.
func (t Transform) TransformDirection(d Vector3) Vector3 {
	return t.Rotation.Normalize().Rotate(d)
}

// InverseTransformDirection rotates a world direction to local space, ignoring scale.
func (t Transform) InverseTransformDirection(d Vector3) Vector3 {
	return t.Rotation.Normalize().Conjugate().Rotate(d)
}
