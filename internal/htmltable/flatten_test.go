package htmltable

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFlattenMixedDepths(t *testing.T) {
	cells := []HeaderCell{
		{Text: "序号", Row: 0, RowSpan: 4, ColSpan: 1},
		{Text: "门店", Row: 0, RowSpan: 4, ColSpan: 1},
		{Text: "营业额", Row: 0, RowSpan: 4, ColSpan: 1},
		{Text: "渠道营业构成", Row: 0, RowSpan: 1, ColSpan: 3},
		{Text: "店内销售", Row: 1, RowSpan: 1, ColSpan: 2},
		{Text: "外卖", Row: 1, RowSpan: 3, ColSpan: 1},
		{Text: "堂食", Row: 2, RowSpan: 2, ColSpan: 1},
		{Text: "自提", Row: 2, RowSpan: 1, ColSpan: 1},
		{Text: "小程序", Row: 3, RowSpan: 1, ColSpan: 1},
	}

	got := Flatten(cells, HeaderDepth)
	expected := []string{
		"序号",
		"门店",
		"营业额",
		"渠道营业构成-店内销售-堂食",
		"渠道营业构成-店内销售-自提-小程序",
		"渠道营业构成-外卖",
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}
}

func TestFlattenCollapsesRepeats(t *testing.T) {
	cells := []HeaderCell{
		{Text: "A", Row: 0, RowSpan: 3, ColSpan: 1},
		{Text: "B", Row: 3, RowSpan: 1, ColSpan: 1},
	}
	require.Equal(t, []string{"A-B"}, Flatten(cells, HeaderDepth))
}

func TestFlattenClipping(t *testing.T) {
	cells := []HeaderCell{
		{Text: "", Row: 0, RowSpan: 1, ColSpan: 1},
		{Text: "Wide", Row: 0, RowSpan: 9, ColSpan: 2},
		{Text: "", Row: 0, RowSpan: 1, ColSpan: 1},
		{Text: "Sub", Row: 1, RowSpan: 1, ColSpan: 9},
		// the row is already exhausted
		{Text: "Lost", Row: 1, RowSpan: 1, ColSpan: 1},
		{Text: "Outside", Row: 7, RowSpan: 1, ColSpan: 1},
	}

	g := NewGrid(cells, HeaderDepth)
	require.Equal(t, 4, g.Width)
	// Sub runs across the positions Wide already covers on row 1
	require.Equal(t, []string{"Sub", "Wide-Sub-Wide", "Wide-Sub-Wide", "Sub"}, g.Columns())
	require.Equal(t, "Sub", g.At(1, 1))
	require.Equal(t, "Wide", g.At(3, 2))
}

func TestFlattenOverlappingSpansOverwrite(t *testing.T) {
	cells := []HeaderCell{
		{Text: "A", Row: 0, RowSpan: 1, ColSpan: 1},
		{Text: "B", Row: 0, RowSpan: 2, ColSpan: 1},
		{Text: "C", Row: 1, RowSpan: 1, ColSpan: 2},
	}
	g := NewGrid(cells, HeaderDepth)
	require.Equal(t, "C", g.At(1, 1))
	require.Equal(t, 4, g.OccupiedCount())
	require.Equal(t, []string{"A-C", "B-C"}, g.Columns())
}

func TestFlattenPlaceholder(t *testing.T) {
	cells := []HeaderCell{
		{Text: "", Row: 0, RowSpan: 4, ColSpan: 1},
		{Text: "X", Row: 0, RowSpan: 4, ColSpan: 1},
	}
	require.Equal(t, []string{"Col0", "X"}, Flatten(cells, HeaderDepth))
}

func TestFlattenEmpty(t *testing.T) {
	require.Empty(t, Flatten(nil, HeaderDepth))
}

// randomHeader builds a well formed header by tiling a depth x width grid
// with rectangles, emitting cells in the order a browser would.
func randomHeader(rng *rand.Rand, depth, width int) ([]HeaderCell, [][]string) {
	taken := make([][]bool, depth)
	want := make([][]string, depth)
	for r := range taken {
		taken[r] = make([]bool, width)
		want[r] = make([]string, width)
	}

	var cells []HeaderCell
	id := 0
	for r := 0; r < depth; r++ {
		for c := 0; c < width; c++ {
			if taken[r][c] {
				continue
			}
			free := 0
			for c+free < width && !taken[r][c+free] {
				free++
			}
			colspan := 1 + rng.IntN(min(free, 3))
			rowspan := 1 + rng.IntN(depth-r)

			id++
			text := string(rune('A' + id%26))
			if rng.IntN(6) == 0 {
				text = ""
			}
			for dr := 0; dr < rowspan; dr++ {
				for dc := 0; dc < colspan; dc++ {
					taken[r+dr][c+dc] = true
					want[r+dr][c+dc] = text
				}
			}
			cells = append(cells, HeaderCell{Text: text, Row: r, RowSpan: rowspan, ColSpan: colspan})
		}
	}
	return cells, want
}

func TestFlattenRandomHeaders(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 500; i++ {
		width := 1 + rng.IntN(12)
		cells, want := randomHeader(rng, HeaderDepth, width)

		g := NewGrid(cells, HeaderDepth)
		require.Equal(t, width, g.Width)
		require.Len(t, g.Columns(), width)

		area := 0
		for _, c := range cells {
			area += c.RowSpan * c.ColSpan
		}
		require.Equal(t, area, g.OccupiedCount())

		for r := 0; r < HeaderDepth; r++ {
			for c := 0; c < width; c++ {
				require.Equal(t, want[r][c], g.At(r, c), "row %d col %d", r, c)
			}
		}
	}
}

func TestFlattenArbitrarySpansNeverPanic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 500; i++ {
		var cells []HeaderCell
		for j := 0; j < rng.IntN(20); j++ {
			cells = append(cells, HeaderCell{
				Text:    "h",
				Row:     rng.IntN(HeaderDepth+2) - 1,
				RowSpan: rng.IntN(6) - 1,
				ColSpan: rng.IntN(6) - 1,
			})
		}
		require.Len(t, Flatten(cells, HeaderDepth), Width(cells))
	}
}
