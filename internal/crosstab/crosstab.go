// Package crosstab groups the values of one metadata key by another.
package crosstab

import (
	"sort"
	"strconv"
)

// Group is one key with the distinct values listed under it.
type Group struct {
	Key    string
	Values []string
}

// Crosstab groups rows by rows[key] and lists the distinct rows[listed]
// per group. Rows without listed contribute missing. Groups keep the order
// their key was first seen in; values are sorted numerically when all of
// them are numbers, lexically otherwise.
func Crosstab(rows []map[string]string, key, listed, missing string) []Group {
	var groups []Group
	index := map[string]int{}
	seen := map[string]map[string]struct{}{}
	for _, row := range rows {
		k := row[key]
		v, ok := row[listed]
		if !ok {
			v = missing
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
			seen[k] = map[string]struct{}{}
		}
		if _, dup := seen[k][v]; dup {
			continue
		}
		seen[k][v] = struct{}{}
		groups[i].Values = append(groups[i].Values, v)
	}
	for i := range groups {
		sortValues(groups[i].Values)
	}
	return groups
}

func sortValues(vals []string) {
	nums := make([]float64, len(vals))
	for i, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			sort.Strings(vals)
			return
		}
		nums[i] = f
	}
	sort.Sort(byNumber{vals, nums})
}

type byNumber struct {
	vals []string
	nums []float64
}

func (b byNumber) Len() int           { return len(b.vals) }
func (b byNumber) Less(i, j int) bool { return b.nums[i] < b.nums[j] }
func (b byNumber) Swap(i, j int) {
	b.vals[i], b.vals[j] = b.vals[j], b.vals[i]
	b.nums[i], b.nums[j] = b.nums[j], b.nums[i]
}
