package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/page"
	"github.com/entrhq/robotdriver/pkg/page/pagetest"
)

// entry builds a product tile with a heading, a price and a paragraph. Empty
// values leave the element out.
func entry(name, price, desc string) *pagetest.Node {
	children := map[string][]page.Node{}
	text := ""
	if name != "" {
		children["h2"] = []page.Node{pagetest.Text("h2", name)}
		text += name + "\n"
	}
	if price != "" {
		children[".price"] = []page.Node{pagetest.Text("span", price)}
		text += price + "\n"
	}
	if desc != "" {
		children["p"] = []page.Node{pagetest.Text("p", desc)}
		text += desc
	}
	return &pagetest.Node{Tag: "div", Text: text, Children: children}
}

func dressFixture() []page.Node {
	return []page.Node{
		entry("Men's Dress Shirt", "Rs. 700", "Men's Dress Shirt"),
		entry("Sleeveless Dress", "Rs. 1000", "Sleeveless Dress"),
		entry("Blue Jeans", "Rs. 900", "Blue Jeans"),
	}
}

func newMatcher(policy Policy) *Matcher {
	return NewMatcher(DefaultSelectors(), policy, nil)
}

func TestMatchFirstInDocumentOrder(t *testing.T) {
	res := newMatcher(PolicyFirst).Match(context.Background(), dressFixture(), "dress")

	require.Equal(t, StatusSuccess, res.Status)
	require.NotNil(t, res.Record)
	assert.Equal(t, ProductRecord{Name: "Men's Dress Shirt", Price: "Rs. 700", Description: "Men's Dress Shirt"}, *res.Record)

	reordered := dressFixture()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	res = newMatcher(PolicyFirst).Match(context.Background(), reordered, "DRESS")
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Sleeveless Dress", res.Record.Name)
}

func TestMatchNotFound(t *testing.T) {
	res := newMatcher(PolicyFirst).Match(context.Background(), dressFixture(), "zzz-nonexistent")

	assert.Equal(t, StatusNotFound, res.Status)
	assert.Nil(t, res.Record)
	assert.Equal(t, "product 'zzz-nonexistent' not found", res.Message)

	res = newMatcher(PolicyFirst).Match(context.Background(), nil, "dress")
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestMatchFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		entry *pagetest.Node
		want  ProductRecord
	}{
		{
			// h2 is the last price selector, so the heading doubles as price.
			name:  "no price element",
			entry: entry("Dress", "", "A dress"),
			want:  ProductRecord{Name: "Dress", Price: "Dress", Description: "A dress"},
		},
		{
			name:  "no description",
			entry: entry("Dress", "Rs. 5", ""),
			want:  ProductRecord{Name: "Dress", Price: "Rs. 5", Description: MissingDescription},
		},
		{
			name:  "no heading",
			entry: entry("", "Rs. 5", "Plain dress"),
			want:  ProductRecord{Name: UnknownName, Price: "Rs. 5", Description: "Plain dress"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newMatcher(PolicyFirst).Match(context.Background(), []page.Node{tt.entry}, "dress")
			require.Equal(t, StatusSuccess, res.Status)
			assert.Equal(t, tt.want, *res.Record)
		})
	}
}

func TestMatchPriceUnknownWithoutAnyPriceElement(t *testing.T) {
	sel := DefaultSelectors()
	sel.Price = []string{".product-price", ".price"}
	m := NewMatcher(sel, PolicyFirst, nil)

	res := m.Match(context.Background(), []page.Node{entry("Dress", "", "A dress")}, "dress")
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, UnknownPrice, res.Record.Price)
}

func TestMatchBlankFieldFallsThrough(t *testing.T) {
	e := entry("Dress", "", "A dress")
	e.Children[".product-price"] = []page.Node{pagetest.Text("span", "   ")}
	e.Children[".price"] = []page.Node{pagetest.Text("span", "Rs. 42")}

	res := newMatcher(PolicyFirst).Match(context.Background(), []page.Node{e}, "dress")
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Rs. 42", res.Record.Price)
}

func TestMatchDisplayNameFallsBackToEntryText(t *testing.T) {
	e := &pagetest.Node{Tag: "div", Text: "Summer Dress Rs. 400", Children: map[string][]page.Node{}}

	res := newMatcher(PolicyFirst).Match(context.Background(), []page.Node{e}, "summer")
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, ProductRecord{Name: UnknownName, Price: UnknownPrice, Description: MissingDescription}, *res.Record)
}

func TestMatchDisplayNameOnlyFromNameField(t *testing.T) {
	// The paragraph says "Top" so the price text in the tile is not matched.
	e := entry("Rs. 500", "", "Top")

	res := newMatcher(PolicyFirst).Match(context.Background(), []page.Node{e}, "Rs.")
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestMatchSkipsBrokenEntries(t *testing.T) {
	broken := entry("Broken Dress", "Rs. 1", "Broken Dress")
	broken.Fail = map[string]bool{"text": true, "query": true}

	unreadableName := entry("Hidden Dress", "Rs. 2", "Hidden Dress")
	unreadableName.Children["p"] = []page.Node{&pagetest.Node{Tag: "p", Fail: map[string]bool{"text": true}}}

	entries := []page.Node{broken, unreadableName, entry("Working Dress", "Rs. 3", "Working Dress")}
	res := newMatcher(PolicyFirst).Match(context.Background(), entries, "dress")

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Working Dress", res.Record.Name)
}

func TestMatchFieldReadFailureUsesNextSelector(t *testing.T) {
	e := entry("Dress", "", "A dress")
	e.Children[".product-price"] = []page.Node{&pagetest.Node{Tag: "span", Fail: map[string]bool{"text": true}}}
	e.Children[".price"] = []page.Node{pagetest.Text("span", "Rs. 7")}

	res := newMatcher(PolicyFirst).Match(context.Background(), []page.Node{e}, "dress")
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Rs. 7", res.Record.Price)
}

func TestMatchUniquePolicy(t *testing.T) {
	m := newMatcher(PolicyUnique)

	res := m.Match(context.Background(), dressFixture(), "dress")
	assert.Equal(t, StatusError, res.Status)
	assert.Nil(t, res.Record)
	assert.Equal(t, "multiple products match 'dress' (2 found)", res.Message)

	res = m.Match(context.Background(), dressFixture(), "sleeveless")
	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "Sleeveless Dress", res.Record.Name)
}

func TestMatchEmptyTarget(t *testing.T) {
	res := newMatcher(PolicyFirst).Match(context.Background(), dressFixture(), "")
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "empty product name", res.Message)
}

func TestMatchTargetIsNotTrimmed(t *testing.T) {
	m := newMatcher(PolicyFirst)

	res := m.Match(context.Background(), dressFixture(), "sleeveless dress ")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Nil(t, res.Record)

	res = m.Match(context.Background(), dressFixture(), "dress ")
	require.Equal(t, StatusSuccess, res.Status)
}

func TestMatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newMatcher(PolicyFirst).Match(ctx, dressFixture(), "dress")
	assert.Equal(t, StatusError, res.Status)
	assert.Nil(t, res.Record)
}

func TestCollect(t *testing.T) {
	sel := DefaultSelectors()
	p := &pagetest.Page{Selectors: map[string][]page.Node{sel.Entries: dressFixture()}}

	entries, err := Collect(context.Background(), p, sel)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	p.QueryErrs = map[string]error{sel.Entries: pagetest.ErrScripted}
	_, err = Collect(context.Background(), p, sel)
	assert.ErrorIs(t, err, pagetest.ErrScripted)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyFirst, "first": PolicyFirst, " Unique ": PolicyUnique} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("best")
	assert.Error(t, err)
}

func TestSelectorsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultSelectors(), SelectorsFromConfig(config.Default().Catalog))

	s := SelectorsFromConfig(config.CatalogConfig{EntrySelector: ".card", PriceSelectors: []string{".cost"}})
	assert.Equal(t, ".card", s.Entries)
	assert.Equal(t, []string{".cost"}, s.Price)
	assert.Equal(t, []string{"h2", "h3", "h4"}, s.Name)
}

func TestResultJSON(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{
			name: "success",
			res:  Found(ProductRecord{Name: "Sleeveless Dress", Price: "Rs. 1000", Description: "Sleeveless Dress"}),
			want: `{"status":"success","product_name":"Sleeveless Dress","price":"Rs. 1000","description":"Sleeveless Dress"}`,
		},
		{
			name: "not found",
			res:  NotFound("zzz"),
			want: `{"status":"not_found","message":"product 'zzz' not found"}`,
		},
		{
			name: "error",
			res:  Failed("Invalid login credentials"),
			want: `{"status":"error","message":"Invalid login credentials"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.res)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back Result
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.res, back)
		})
	}

	var r Result
	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &r))
}
