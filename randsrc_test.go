package netimp

import "testing"

func TestRandomSourcePercentageRange(t *testing.T) {
	r := NewRandomSource(1)
	for i := 0; i < 1000; i++ {
		v := r.Percentage()
		if v < 0 || v >= 100 {
			t.Fatalf("Percentage() out of [0,100): %f", v)
		}
	}
}

func TestRandomSourceIntRangeInclusive(t *testing.T) {
	r := NewRandomSource(2)
	for i := 0; i < 1000; i++ {
		v := r.IntRange(5, 10)
		if v < 5 || v > 10 {
			t.Fatalf("IntRange(5,10) out of bounds: %d", v)
		}
	}
}

func TestRandomSourceIntRangeEqualBoundsSkipsRNG(t *testing.T) {
	r := NewRandomSource(3)
	if v := r.IntRange(7, 7); v != 7 {
		t.Fatalf("IntRange(7,7) = %d, want 7", v)
	}
}

func TestRandomSourceIntRangeSwapsInvertedBounds(t *testing.T) {
	r := NewRandomSource(4)
	for i := 0; i < 100; i++ {
		v := r.IntRange(10, 2)
		if v < 2 || v > 10 {
			t.Fatalf("IntRange(10,2) out of bounds: %d", v)
		}
	}
}

func TestRandomSourceShufflePermutes(t *testing.T) {
	r := NewRandomSource(5)
	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	seen := make(map[int]bool)
	r.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	for _, v := range items {
		seen[v] = true
	}
	if len(seen) != 8 {
		t.Fatalf("shuffle lost or duplicated elements: %v", items)
	}
}
