package usecase

import (
	"context"
	"strings"
	"testing"
)

func TestAssemble_Empty(t *testing.T) {
	uc := NewPackUseCase(newKitchen(t))

	for _, ids := range [][]int64{nil, {}, {404, 405}} {
		got, err := uc.Assemble(context.Background(), ids)
		if err != nil {
			t.Fatal(err)
		}
		if got != "" {
			t.Errorf("Assemble(%v) = %q, want empty", ids, got)
		}
	}
}

func TestAssemble_KeepsInputOrder(t *testing.T) {
	uc := NewPackUseCase(newKitchen(t))

	got, err := uc.Assemble(context.Background(), []int64{3, 404, 1, 3})
	if err != nil {
		t.Fatal(err)
	}

	want := "Title: Hummus\nTags: dip\nMethod: Blend chickpeas.\n" +
		"\n---\n" +
		"Title: Tomato Soup\nTags: soup\nMethod: Simmer tomatoes.\n"
	if got != want {
		t.Errorf("unexpected context:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderBlock_EmptyFields(t *testing.T) {
	uc := NewPackUseCase(newKitchen(t))

	got, err := uc.Assemble(context.Background(), []int64{6})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Title: \nTags: \nMethod: \n" {
		t.Errorf("unexpected block for an empty recipe: %q", got)
	}
	if strings.Contains(got, "---") {
		t.Error("a single block has no separator")
	}
}
