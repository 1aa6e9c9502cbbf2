package crosstab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrosstab(t *testing.T) {
	rows := []map[string]string{
		{"source": "e", "number": "3"},
		{"source": "a", "page": "2"},
		{"source": "a", "page": "3"},
		{"source": "d", "page": "1"},
		{"source": "a", "page": "2"},
	}
	got := Crosstab(rows, "source", "page", "NA")
	assert.Equal(t, []Group{
		{Key: "e", Values: []string{"NA"}},
		{Key: "a", Values: []string{"2", "3"}},
		{Key: "d", Values: []string{"1"}},
	}, got)
}

func TestCrosstabSortsNumbersNumerically(t *testing.T) {
	rows := []map[string]string{
		{"source": "x", "page": "10"},
		{"source": "x", "page": "9"},
		{"source": "x", "page": "100"},
	}
	assert.Equal(t, []string{"9", "10", "100"}, Crosstab(rows, "source", "page", "NA")[0].Values)
}

func TestCrosstabMixedValuesSortLexically(t *testing.T) {
	rows := []map[string]string{
		{"source": "x", "page": "10"},
		{"source": "x"},
		{"source": "x", "page": "9"},
	}
	assert.Equal(t, []string{"10", "9", "NA"}, Crosstab(rows, "source", "page", "NA")[0].Values)
}

func TestCrosstabEmpty(t *testing.T) {
	assert.Empty(t, Crosstab(nil, "source", "page", "NA"))
}
