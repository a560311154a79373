package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"tomato soup", "basil"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, []string{"tomato soup", "basil"})
	if err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if len(a[i]) != 16 {
			t.Fatalf("expected dimension 16, got %d", len(a[i]))
		}
		for j := range a[i] {
			if math.Float32bits(a[i][j]) != math.Float32bits(b[i][j]) {
				t.Fatalf("embedding %d differs at %d", i, j)
			}
		}
	}
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	e := NewMockEmbedder(32)
	vec, err := e.EmbedOne(context.Background(), "lentil stew")
	if err != nil {
		t.Fatal(err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("expected unit vector, norm %f", math.Sqrt(sum))
	}
}
