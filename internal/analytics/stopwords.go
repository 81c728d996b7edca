package analytics

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
		"any", "are", "aren't", "as", "at", "be", "because", "been", "before", "being",
		"below", "between", "both", "but", "by", "can", "can't", "cannot", "could", "couldn't",
		"did", "didn't", "do", "does", "doesn't", "doing", "don't", "down", "during", "each",
		"few", "for", "from", "further", "had", "hadn't", "has", "hasn't", "have", "haven't",
		"having", "he", "he'd", "he'll", "he's", "her", "here", "here's", "hers", "herself",
		"him", "himself", "his", "how", "how's", "i", "i'd", "i'll", "i'm", "i've",
		"if", "in", "into", "is", "isn't", "it", "it's", "its", "itself", "let's",
		"may", "me", "more", "most", "mustn't", "my", "myself", "no", "nor", "not",
		"of", "off", "on", "once", "only", "or", "other", "ought", "our", "ours",
		"ourselves", "out", "over", "own", "please", "same", "shan't", "she", "she'd", "she'll",
		"she's", "should", "shouldn't", "so", "some", "such", "than", "that", "that's", "the",
		"their", "theirs", "them", "themselves", "then", "there", "there's", "these", "they", "they'd",
		"they'll", "they're", "they've", "this", "those", "through", "to", "too", "under", "until",
		"up", "us", "very", "was", "wasn't", "we", "we'd", "we'll", "we're", "we've",
		"were", "weren't", "what", "what's", "when", "when's", "where", "where's", "which", "while",
		"who", "who's", "whom", "why", "why's", "with", "won't", "would", "wouldn't", "will",
		"you", "you'd", "you'll", "you're", "you've", "your", "yours", "yourself", "yourselves",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// loadStopwordsFile optionally augments the built-in stopword set from a
// file, one word per line, blank lines and "#"-prefixed comments
// ignored. Candidates are tried in this order, and the first one that
// exists and contributes at least one word wins:
//
//  1. $STOPWORDS_PATH
//  2. ./stopwords.txt (current working directory)
//  3. stopwords.txt in the running executable's directory
//
// The module's source root is not searched.
func (a *Analytics) loadStopwordsFile() {
	var candidates []string
	if envPath := os.Getenv("STOPWORDS_PATH"); envPath != "" {
		candidates = append(candidates, envPath)
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "stopwords.txt"))
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "stopwords.txt"))
	}

	for _, path := range candidates {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		added := false
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			word := strings.ToLower(strings.ReplaceAll(line, "’", "'"))
			a.stopwords[word] = struct{}{}
			added = true
		}
		f.Close()
		if added {
			return
		}
	}
}
