package optimistic

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

func cloneInts(v []int) []int { return slices.Clone(v) }

func appendInt(n int) func([]int) []int {
	return func(v []int) []int { return append(v, n) }
}

func fetchOK(v []int) Fetch[[]int] {
	return func(context.Context) ([]int, bool, error) { return slices.Clone(v), true, nil }
}

func fetchNoBody() Fetch[[]int] {
	return func(context.Context) ([]int, bool, error) { return nil, false, nil }
}

func fetchErr(err error) Fetch[[]int] {
	return func(context.Context) ([]int, bool, error) { return nil, false, err }
}

func TestRun(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		initial []int
		m       Mutation[[]int]
		want    []int
		wantErr error
	}{
		{
			name:    "success adopts response",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:  appendInt(2),
				Remote: fetchOK([]int{1, 2, 3}),
			},
			want: []int{1, 2, 3},
		},
		{
			name:    "partial ack adopts refetch",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:   appendInt(2),
				Remote:  fetchNoBody(),
				Refetch: fetchOK([]int{1, 2, 9}),
			},
			want: []int{1, 2, 9},
		},
		{
			name:    "partial ack keeps optimistic when refetch has no body",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:   appendInt(2),
				Remote:  fetchNoBody(),
				Refetch: fetchNoBody(),
			},
			want: []int{1, 2},
		},
		{
			name:    "partial ack keeps optimistic when refetch fails",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:   appendInt(2),
				Remote:  fetchNoBody(),
				Refetch: fetchErr(boom),
			},
			want: []int{1, 2},
		},
		{
			name:    "failure rolls back to refetch",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:   appendInt(2),
				Remote:  fetchErr(boom),
				Refetch: fetchOK([]int{7}),
			},
			want:    []int{7},
			wantErr: boom,
		},
		{
			name:    "failure restores snapshot when refetch fails",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:   appendInt(2),
				Remote:  fetchErr(boom),
				Refetch: fetchErr(errors.New("offline")),
			},
			want:    []int{1},
			wantErr: boom,
		},
		{
			name:    "failure without refetch restores snapshot",
			initial: []int{1},
			m: Mutation[[]int]{
				Apply:  appendInt(2),
				Remote: fetchErr(boom),
			},
			want:    []int{1},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := NewCell(tt.initial, cloneInts)
			got, err := Run(context.Background(), cell, tt.m, nil)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Run() = %v, want %v", got, tt.want)
			}
			if !slices.Equal(cell.Load(), tt.want) {
				t.Errorf("cell = %v, want %v", cell.Load(), tt.want)
			}
		})
	}
}

func TestRunAppliesBeforeRemote(t *testing.T) {
	cell := NewCell([]int{}, cloneInts)
	var seen []int

	Run(context.Background(), cell, Mutation[[]int]{
		Apply: appendInt(5),
		Remote: func(context.Context) ([]int, bool, error) {
			seen = cell.Load()
			return seen, true, nil
		},
	}, nil)

	if !slices.Equal(seen, []int{5}) {
		t.Errorf("state during remote call = %v, want [5]", seen)
	}
}

func TestCellLoadIsCopy(t *testing.T) {
	cell := NewCell([]int{1, 2}, cloneInts)
	v := cell.Load()
	v[0] = 99

	if cell.Load()[0] != 1 {
		t.Error("mutating a loaded value changed the cell")
	}
}

func TestStorePairConsistency(t *testing.T) {
	a := NewCell(0, nil)
	b := NewCell(0, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			StorePair(a, n, b, n)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		av, bv := LoadPair(a, b)
		if av != bv {
			t.Fatalf("observed torn pair: %d / %d", av, bv)
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

// A Reset during the backend call (sign-out on 401) must win over every late
// write the mutation would make.
func TestRunDiscardsWritesAfterReset(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		remote  func(cell *Cell[[]int]) Fetch[[]int]
		refetch Fetch[[]int]
		wantErr bool
	}{
		{
			name: "rollback to snapshot",
			remote: func(cell *Cell[[]int]) Fetch[[]int] {
				return func(context.Context) ([]int, bool, error) {
					cell.Reset(nil)
					return nil, false, boom
				}
			},
			refetch: fetchErr(boom),
			wantErr: true,
		},
		{
			name: "rollback to refetch",
			remote: func(cell *Cell[[]int]) Fetch[[]int] {
				return func(context.Context) ([]int, bool, error) {
					cell.Reset(nil)
					return nil, false, boom
				}
			},
			refetch: fetchOK([]int{7}),
			wantErr: true,
		},
		{
			name: "success response",
			remote: func(cell *Cell[[]int]) Fetch[[]int] {
				return func(context.Context) ([]int, bool, error) {
					cell.Reset(nil)
					return []int{1, 2}, true, nil
				}
			},
		},
		{
			name: "partial ack refetch",
			remote: func(cell *Cell[[]int]) Fetch[[]int] {
				return func(context.Context) ([]int, bool, error) {
					cell.Reset(nil)
					return nil, false, nil
				}
			},
			refetch: fetchOK([]int{1, 2}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := NewCell([]int{1}, cloneInts)
			got, err := Run(context.Background(), cell, Mutation[[]int]{
				Name:    "test",
				Apply:   appendInt(2),
				Remote:  tt.remote(cell),
				Refetch: tt.refetch,
			}, nil)

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != 0 || len(cell.Load()) != 0 {
				t.Errorf("cell = %v after reset, want empty", cell.Load())
			}
		})
	}
}

func TestStoreIf(t *testing.T) {
	cell := NewCell([]int{1}, cloneInts)
	_, gen := cell.Snapshot()

	if !cell.StoreIf(gen, []int{2}) {
		t.Fatal("StoreIf at current generation refused")
	}
	cell.Reset([]int{})
	if cell.StoreIf(gen, []int{3}) {
		t.Error("StoreIf accepted a stale generation")
	}
	if got := cell.Load(); len(got) != 0 {
		t.Errorf("cell = %v, want empty", got)
	}
	if cell.Generation() != gen+1 {
		t.Errorf("Generation = %d, want %d", cell.Generation(), gen+1)
	}

	b := NewCell(0, nil)
	bgen := b.Generation()
	b.Reset(0)
	if StorePairIf(cell, cell.Generation(), []int{4}, b, bgen, 4) {
		t.Error("StorePairIf committed with one stale generation")
	}
	if len(cell.Load()) != 0 || b.Load() != 0 {
		t.Errorf("partial commit: %v / %d", cell.Load(), b.Load())
	}
}
