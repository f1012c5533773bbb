package index

// stopWordList holds terms excluded from indexing. It covers English
// function words and common Chinese particles, and is kept as data so
// it can be swapped or localized without touching the tokenizer.
var stopWordList = []string{
	// English
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "shall", "can", "to", "of", "in", "for",
	"on", "with", "at", "by", "from", "as", "into", "about", "it", "its",
	"this", "that", "these", "those", "he", "she", "we", "they", "me",
	"him", "her", "us", "them", "my", "his", "our", "your", "their",
	"what", "which", "who", "when", "where", "how", "not", "no", "nor",
	"but", "or", "and", "if", "then", "so", "than", "too", "very",
	"just", "also", "now", "here", "there", "all", "any", "both", "each",
	// Chinese particles and fillers
	"的", "了", "在", "是", "我", "有", "和", "就", "不", "人", "都",
	"一", "一个", "上", "也", "很", "到", "说", "要", "去", "你",
	"会", "着", "没有", "看", "好", "自己", "这", "他", "她", "它",
}

var stopWords = func() map[string]struct{} {
	m := make(map[string]struct{}, len(stopWordList))
	for _, w := range stopWordList {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopWord reports whether the given term is filtered during tokenization.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}
