package index

// synonymGroups lists sets of mutually-interchangeable query terms.
// Groups are data, not code: they may overlap, and a term appearing in
// several groups expands to the union of its group-mates.
var synonymGroups = [][]string{
	{"赚钱", "收入", "赚", "钱", "盈利", "变现", "营收"},
	{"搞钱", "赚钱", "挣钱", "收入"},
	{"被动收入", "睡后收入", "自动赚钱"},
	{"社交", "面对面", "谈客户", "见人", "社恐"},
	{"记忆", "记住", "回忆", "存储"},
	{"AI", "人工智能", "机器学习", "ml"},
	{"编程", "写代码", "开发", "代码", "code", "coding"},
	{"数学", "数学家", "算法", "公式"},
	{"项目", "产品", "工具", "服务"},
	{"天气", "温度", "气候", "气温", "冷", "热"},
	{"新加坡", "狮城", "singapore", "sg"},
	{"量化", "交易", "套利", "对冲"},
	{"开源", "open source", "github", "免费"},
}

// synonymMap maps each term to its ordered co-member list (itself included).
var synonymMap = func() map[string][]string {
	m := make(map[string][]string)
	for _, group := range synonymGroups {
		for _, word := range group {
			present := make(map[string]struct{}, len(m[word]))
			for _, w := range m[word] {
				present[w] = struct{}{}
			}
			for _, w := range group {
				if _, ok := present[w]; !ok {
					m[word] = append(m[word], w)
					present[w] = struct{}{}
				}
			}
		}
	}
	return m
}()

// ExpandSynonyms returns tokens plus, for every token that belongs to a
// synonym group, each group-mate not already present. First-seen order
// is preserved and no duplicates are introduced. Only queries should be
// expanded; expanding stored content would skew document frequencies.
func ExpandSynonyms(tokens []string) []string {
	expanded := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		expanded = append(expanded, t)
		seen[t] = struct{}{}
	}
	for _, t := range tokens {
		for _, s := range synonymMap[t] {
			if _, ok := seen[s]; !ok {
				expanded = append(expanded, s)
				seen[s] = struct{}{}
			}
		}
	}
	return expanded
}
