package anki

import (
	"regexp"
	"sort"
	"strconv"
)

var clozePattern = regexp.MustCompile(`\{\{c(\d+)::`)

// ClozeOrdinals returns the distinct 1-based cloze numbers used in texts,
// ascending. {{c0::...}} is not a valid deletion and is ignored.
func ClozeOrdinals(texts ...string) []int {
	seen := make(map[int]bool)
	var ords []int
	for _, text := range texts {
		for _, m := range clozePattern.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 || seen[n] {
				continue
			}
			seen[n] = true
			ords = append(ords, n)
		}
	}
	sort.Ints(ords)
	return ords
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
