package services

import (
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Hybrid blend weights. Results matching every query word lean further
// on the keyword score.
const (
	semanticWeight          = 0.7
	keywordWeight           = 0.3
	fullMatchSemanticWeight = 0.6
	fullMatchKeywordWeight  = 0.4

	wordMatchBonus  = 1.0
	phraseBonus     = 0.5
	proximityBonus  = 0.3
	proximityWindow = 50
)

// keywordScore scores how well text matches the query words. Each word
// found as a substring adds one; a multi-word query earns a phrase bonus
// for an exact match or a smaller one when two words appear close
// together. The sum is divided by the number of query words.
func keywordScore(words []string, query, text string) (score float64, matched int) {
	if len(words) == 0 {
		return 0, 0
	}
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			matched++
			score += wordMatchBonus
		}
	}
	if len(words) > 1 {
		switch {
		case strings.Contains(lower, query):
			score += phraseBonus
		case matched >= 2 && wordsNear(words, lower):
			score += proximityBonus
		}
	}
	return score / float64(len(words)), matched
}

// wordsNear reports whether two different query words start within
// proximityWindow bytes of each other.
func wordsNear(words []string, text string) bool {
	positions := make([][]int, 0, len(words))
	for _, w := range words {
		var found []int
		for start := 0; start < len(text); {
			i := strings.Index(text[start:], w)
			if i < 0 {
				break
			}
			found = append(found, start+i)
			start += i + 1
		}
		if len(found) > 0 {
			positions = append(positions, found)
		}
	}
	for i := range positions {
		for j := range positions {
			if i == j {
				continue
			}
			for _, a := range positions[i] {
				for _, b := range positions[j] {
					if abs(a-b) <= proximityWindow {
						return true
					}
				}
			}
		}
	}
	return false
}

// rerank orders results by the hybrid blend and truncates to limit.
// Confidence is left untouched; the blend is reported as Score.
func rerank(query string, results []domain.SearchResult, limit int) []domain.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(q)
	if len(words) == 0 {
		return truncate(results, limit)
	}
	q = strings.Join(words, " ")

	for i := range results {
		kw, matched := keywordScore(words, q, results[i].Text)
		semantic := results[i].Confidence
		if matched == len(words) {
			results[i].Score = fullMatchSemanticWeight*semantic + fullMatchKeywordWeight*kw
		} else {
			results[i].Score = semanticWeight*semantic + keywordWeight*kw
		}
		results[i].SemanticScore = semantic
		results[i].KeywordScore = kw
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	return truncate(results, limit)
}

func truncate(results []domain.SearchResult, limit int) []domain.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
