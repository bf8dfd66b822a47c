// Package e2e provides end-to-end tests over a generated product catalogue.
package e2e

import (
	"fmt"
	"strings"

	"github.com/Skynet843/IntentSearch/internal/models"
)

// QueryTestCase defines a query and the product id that must appear in its results.
type QueryTestCase struct {
	Query      string
	ExpectedID string
}

// Corpus holds products and query test cases for E2E tests.
type Corpus struct {
	Products  []models.Product
	TestCases []QueryTestCase
}

var (
	materials = []string{"bamboo", "cast iron", "ceramic", "copper", "leather", "linen", "merino wool", "oak", "recycled plastic", "stainless steel"}
	items     = []string{"cutting board", "frying pan", "coffee mug", "kettle", "backpack", "tablecloth", "running socks", "desk organizer", "water bottle", "chef knife"}
	audiences = []string{"for small kitchens", "for travel", "for gifting", "for everyday use"}
)

// BuildCorpus returns n products with distinct texts. Every fifth product gets a query test case
// whose query is the product's own text, so the product is the unique nearest neighbor.
func BuildCorpus(n int) *Corpus {
	c := &Corpus{}
	for i := 0; i < n; i++ {
		m := materials[i%len(materials)]
		it := items[(i/len(materials))%len(items)]
		a := audiences[(i/(len(materials)*len(items)))%len(audiences)]
		p := models.Product{
			ID:   fmt.Sprintf("sku-%04d", i+1),
			Text: fmt.Sprintf("%s %s %s (model %d)", m, it, a, i+1),
		}
		c.Products = append(c.Products, p)
		if i%5 == 0 {
			c.TestCases = append(c.TestCases, QueryTestCase{Query: p.Text, ExpectedID: p.ID})
		}
	}
	return c
}

// JSONL renders the products as one JSON object per line.
func (c *Corpus) JSONL() []byte {
	var b strings.Builder
	for _, p := range c.Products {
		fmt.Fprintf(&b, "{\"id\":%q,\"text\":%q}\n", p.ID, p.Text)
	}
	return []byte(b.String())
}

// CSV renders the products with an id,text header. Texts never contain quotes or commas.
func (c *Corpus) CSV() []byte {
	var b strings.Builder
	b.WriteString("id,text\n")
	for _, p := range c.Products {
		fmt.Fprintf(&b, "%s,%s\n", p.ID, p.Text)
	}
	return []byte(b.String())
}
