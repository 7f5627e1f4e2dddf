package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestNewPlacedObjectAssignsIDAndTimestamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	a := NewPlacedObject("Chair", "chair.usdz", IdentityTransform(), now)
	b := NewPlacedObject("Chair", "chair.usdz", IdentityTransform(), now)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if !a.CreatedAt.Equal(now) || !a.LastModified.Equal(now) {
		t.Fatalf("unexpected timestamps %+v", a)
	}
	if a.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps, got %s", a.CreatedAt.Location())
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsBrokenRecords(t *testing.T) {
	now := time.Unix(100, 0).UTC()
	base := NewPlacedObject("Lamp", "lamp", IdentityTransform(), now)

	cases := map[string]func(*PlacedObject){
		"empty id":        func(o *PlacedObject) { o.ID = "" },
		"zero scale":      func(o *PlacedObject) { o.Transform.Scale.Y = 0 },
		"negative scale":  func(o *PlacedObject) { o.Transform.Scale.X = -1 },
		"nan position":    func(o *PlacedObject) { o.Transform.Position.Z = math.NaN() },
		"inf rotation":    func(o *PlacedObject) { o.Transform.Rotation.W = math.Inf(1) },
		"zero rotation":   func(o *PlacedObject) { o.Transform.Rotation = Quat{} },
		"long rotation":   func(o *PlacedObject) { o.Transform.Rotation = Quat{Y: 1, W: 1} },
		"modified before": func(o *PlacedObject) { o.LastModified = now.Add(-time.Second) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			obj := base
			mutate(&obj)
			if err := obj.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNewerThanFavoursExistingOnTie(t *testing.T) {
	at := time.Unix(10, 0)
	local := PlacedObject{ID: "a", LastModified: at}
	remote := PlacedObject{ID: "a", LastModified: at}
	if remote.NewerThan(local) {
		t.Fatalf("tie must not be newer")
	}
	remote.LastModified = at.Add(time.Nanosecond)
	if !remote.NewerThan(local) {
		t.Fatalf("strictly later record must be newer")
	}
}

func TestScaledByClampsEachComponent(t *testing.T) {
	tr := IdentityTransform().ScaledBy(6.0)
	if tr.Scale != (Vec3{X: MaxScale, Y: MaxScale, Z: MaxScale}) {
		t.Fatalf("expected clamp to max, got %+v", tr.Scale)
	}
	tr = IdentityTransform().ScaledBy(0.01)
	if tr.Scale != (Vec3{X: MinScale, Y: MinScale, Z: MinScale}) {
		t.Fatalf("expected clamp to min, got %+v", tr.Scale)
	}
	tr = Transform{Rotation: IdentityQuat, Scale: Vec3{X: 1, Y: 2, Z: 4}}.ScaledBy(2)
	if tr.Scale != (Vec3{X: 2, Y: 4, Z: MaxScale}) {
		t.Fatalf("unexpected per-component clamp %+v", tr.Scale)
	}
	if got := ClampScale(math.NaN()); got != MinScale {
		t.Fatalf("nan clamps to min, got %v", got)
	}
}

func TestQuatNormalized(t *testing.T) {
	q := Quat{X: 0, Y: 0, Z: 3, W: 4}.Normalized()
	if math.Abs(q.Len()-1) > 1e-12 {
		t.Fatalf("expected unit length, got %v", q.Len())
	}
	if (Quat{}).Normalized() != IdentityQuat {
		t.Fatalf("zero quaternion should normalize to identity")
	}
	tr := IdentityTransform().Rotated(Quat{W: 2})
	if tr.Rotation != IdentityQuat {
		t.Fatalf("unexpected rotation %+v", tr.Rotation)
	}
}

func TestTranslated(t *testing.T) {
	tr := IdentityTransform().Translated(Vec3{X: 1, Y: -2, Z: 0.5}).Translated(Vec3{X: 1})
	if tr.Position != (Vec3{X: 2, Y: -2, Z: 0.5}) {
		t.Fatalf("unexpected position %+v", tr.Position)
	}
}

func TestErrorTaxonomyMatching(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", NotFoundError{ID: "x"})
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected ErrNotFound match")
	}
	if !errors.Is(DuplicateIDError{ID: "x"}, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID match")
	}
	serr := &SerializationError{Op: "decode", Err: errors.New("bad json")}
	if !errors.Is(serr, ErrSerialization) || serr.Error() != "decode: bad json" {
		t.Fatalf("unexpected serialization error %v", serr)
	}
	cause := errors.New("dial tcp: refused")
	rerr := Unavailable("http", "fetch", cause)
	if !errors.Is(rerr, ErrRemoteUnavailable) || !errors.Is(rerr, cause) {
		t.Fatalf("expected remote unavailable wrapping cause, got %v", rerr)
	}
	if again := Unavailable("sqlite", "upsert", rerr); again != rerr {
		t.Fatalf("expected existing remote error to pass through")
	}
	if Unavailable("x", "y", nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestHandle(t *testing.T) {
	obj := PlacedObject{ID: "abc"}
	if obj.Handle() != (Handle{ID: "abc"}) {
		t.Fatalf("unexpected handle %+v", obj.Handle())
	}
}

func TestValidateAcceptsNormalizedRotation(t *testing.T) {
	obj := NewPlacedObject("Lamp", "lamp", IdentityTransform().Rotated(Quat{X: 1, Y: 2, Z: 3, W: 4}), time.Unix(1, 0))
	if err := obj.Validate(); err != nil {
		t.Fatalf("normalized rotation rejected: %v", err)
	}
}

func TestEqualComparesInstants(t *testing.T) {
	a := NewPlacedObject("lamp", "lamp.usdz", IdentityTransform(), time.Unix(10, 0))
	b := a
	b.LastModified = a.LastModified.In(time.FixedZone("east", 3600))
	if !a.Equal(b) {
		t.Fatalf("same instant in another zone must be equal")
	}
	b.Transform = b.Transform.Translated(Vec3{X: 1})
	if a.Equal(b) {
		t.Fatalf("moved record must differ")
	}
}
