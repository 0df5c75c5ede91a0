package loader

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	imgRegex       = regexp.MustCompile(`!\[[^\]]*\]\(data:image\/[a-zA-Z]+;base64,[^)]+\)`)
	blankRunsRegex = regexp.MustCompile(`\n{3,}`)
)

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s: not valid UTF-8 text", ErrLoad, path)
	}
	return cleanText(string(data)), nil
}

// cleanText drops inline base64 images and collapses runs of blank lines.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = imgRegex.ReplaceAllString(text, "")
	text = blankRunsRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
