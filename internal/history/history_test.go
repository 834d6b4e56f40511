package history_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/DMarby/picsum-editor/internal/history"
)

func bitmap(t *testing.T, shade uint8) *history.Bitmap {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{shade, shade, shade, 255})
		}
	}

	b, err := history.NewBitmap(img)
	if err != nil {
		t.Fatal(err)
	}

	return b
}

func TestSentinel(t *testing.T) {
	for n := 0; n < 8; n++ {
		initial := bitmap(t, 0)
		stack := history.New(initial)

		for i := 0; i < n; i++ {
			stack.Push(bitmap(t, uint8(i+1)))
		}

		if stack.Len() != n+1 {
			t.Fatalf("%d commits: wrong length %d", n, stack.Len())
		}

		var shown *history.Bitmap
		for i := 0; i < n+5; i++ {
			shown = stack.Undo()
			if stack.Len() < 1 {
				t.Fatalf("%d commits: length dropped below 1", n)
			}
		}

		if !shown.Equal(initial) {
			t.Errorf("%d commits: shown bitmap is not the initial one", n)
		}

		if stack.Len() != 1 {
			t.Errorf("%d commits: wrong final length %d", n, stack.Len())
		}
	}
}

func TestUndoBranches(t *testing.T) {
	initial := bitmap(t, 0)

	single := history.New(initial)
	singleShown := single.Undo()

	double := history.New(initial)
	double.Push(bitmap(t, 10))
	doubleShown := double.Undo()

	if !singleShown.Equal(doubleShown) || single.Len() != double.Len() || !single.Top().Equal(double.Top()) {
		t.Error("undo on one and two entries should end in the same state")
	}

	deep := history.New(initial)
	second := bitmap(t, 20)
	deep.Push(second)
	deep.Push(bitmap(t, 30))

	if shown := deep.Undo(); !shown.Equal(second) {
		t.Error("undo should show the previous entry")
	}

	if deep.Len() != 2 {
		t.Errorf("wrong length %d", deep.Len())
	}
}

func TestOnChange(t *testing.T) {
	stack := history.New(bitmap(t, 0))

	var lengths []int
	stack.OnChange(func(length int) {
		lengths = append(lengths, length)
	})

	stack.Push(bitmap(t, 1))
	stack.Push(bitmap(t, 2))
	stack.Undo()
	stack.Undo()
	stack.Undo()

	expected := []int{2, 3, 2, 1, 1}
	if len(lengths) != len(expected) {
		t.Fatalf("wrong notifications %v", lengths)
	}

	for i := range expected {
		if lengths[i] != expected[i] {
			t.Errorf("wrong notifications %v", lengths)
			break
		}
	}
}

func TestUndoEnabled(t *testing.T) {
	tests := []struct {
		Length    int
		PaintMode bool
		Expected  bool
	}{
		{1, false, false},
		{1, true, false},
		{2, true, false},
		{2, false, true},
		{5, false, true},
	}

	for _, test := range tests {
		if enabled := history.UndoEnabled(test.Length, test.PaintMode); enabled != test.Expected {
			t.Errorf("length %d, paint mode %t: expected %t", test.Length, test.PaintMode, test.Expected)
		}
	}
}

func TestBitmapIsImmutable(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	b, err := history.NewBitmap(img)
	if err != nil {
		t.Fatal(err)
	}

	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	out := b.Image()
	out.SetNRGBA(1, 1, color.NRGBA{0, 255, 0, 255})

	if got := b.Image().NRGBAAt(0, 0); got.A != 0 {
		t.Error("bitmap changed with its source image")
	}

	if got := b.Image().NRGBAAt(1, 1); got.A != 0 {
		t.Error("bitmap changed with its output image")
	}

	if _, err := history.NewBitmap(image.NewNRGBA(image.Rectangle{})); err != history.ErrEmptyBitmap {
		t.Errorf("wrong error %v", err)
	}
}
