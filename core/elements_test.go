package core

import (
	"math"
	"testing"
)

func TestNewOrbitalElementsRejectsSubsurfaceAxis(t *testing.T) {
	if _, err := NewOrbitalElements(EarthRadiusKm-1, 0, 86.4, 0, 0, 0); err == nil {
		t.Fatal("expected error for semi-major axis below Earth radius")
	}
}

func TestNewOrbitalElementsRejectsInvalidEccentricity(t *testing.T) {
	if _, err := NewOrbitalElements(7158.14, 1.0, 86.4, 0, 0, 0); err == nil {
		t.Fatal("expected error for eccentricity >= 1")
	}
	if _, err := NewOrbitalElements(7158.14, -0.1, 86.4, 0, 0, 0); err == nil {
		t.Fatal("expected error for negative eccentricity")
	}
}

// TestCircularOrbitPreservesRadius exercises S1: a circular orbit (e=0) keeps
// a constant distance from Earth's center at every propagated time.
func TestCircularOrbitPreservesRadius(t *testing.T) {
	oe, err := NewOrbitalElements(7158.14, 0, 86.4, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewOrbitalElements: %v", err)
	}

	wantRadiusM := 7158.14 * 1000.0
	period := oe.Period()

	for _, frac := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.99} {
		pos, _ := Propagate(oe, frac*period)
		r := pos.Norm()
		if math.Abs(r-wantRadiusM) > 1.0 {
			t.Errorf("t=%.3f*period: radius = %.3f m, want %.3f m", frac, r, wantRadiusM)
		}
	}
}

func TestCircularOrbitReturnsToStartAfterFullPeriod(t *testing.T) {
	oe, err := NewOrbitalElements(7158.14, 0, 86.4, 30, 15, 45)
	if err != nil {
		t.Fatalf("NewOrbitalElements: %v", err)
	}
	period := oe.Period()

	start, _ := Propagate(oe, 0)
	end, _ := Propagate(oe, period)

	if d := start.DistanceTo(end); d > 1.0 {
		t.Errorf("position drifted %.6f m over one full period", d)
	}
}

func TestEccentricOrbitVariesRadius(t *testing.T) {
	oe, err := NewOrbitalElements(8000, 0.1, 45, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewOrbitalElements: %v", err)
	}
	period := oe.Period()

	perigee, _ := Propagate(oe, 0)
	apogee, _ := Propagate(oe, period/2)

	if perigee.Norm() >= apogee.Norm() {
		t.Errorf("perigee radius %.3f should be less than apogee radius %.3f", perigee.Norm(), apogee.Norm())
	}
}

func TestSolveKeplerConvergesForHighEccentricity(t *testing.T) {
	ecc := solveKepler(1.5, 0.9)
	residual := ecc - 0.9*math.Sin(ecc) - 1.5
	if math.Abs(residual) > 1e-6 {
		t.Errorf("Kepler residual = %v, want ~0", residual)
	}
}

func TestNormalizeAngleWraps(t *testing.T) {
	got := normalizeAngle(-math.Pi / 2)
	want := 3 * math.Pi / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("normalizeAngle(-pi/2) = %v, want %v", got, want)
	}
}
