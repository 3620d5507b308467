// Package markdown parses flashcard sources written as markdown files
// with Q:/A:/C: blocks, one card per block group.
package markdown

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	frontPrefix   = "Q:"
	backPrefix    = "A:"
	contextPrefix = "C:"
)

// Card is a single parsed front/back/context entry.
type Card struct {
	Front   string
	Back    string
	Context string
}

type state int

const (
	seeking state = iota
	readingFront
	readingBack
	readingContext
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. A new Q: block
// or a --- separator finishes the current card; cards without a front
// are discarded.
func Parse(r io.Reader) ([]Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []Card
	var currentCard Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.Join(currentBlock, "\n")
		switch currentState {
		case readingFront:
			currentCard.Front = content
		case readingBack:
			currentCard.Back = content
		case readingContext:
			currentCard.Context = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Front != "" {
			cards = append(cards, currentCard)
		}
		currentCard = Card{}
		currentState = seeking
	}

	startBlock := func(line, prefix string, next state) {
		flushBlock()
		currentState = next
		content := strings.TrimPrefix(line, prefix)
		if strings.HasPrefix(content, " ") {
			content = content[1:]
		}
		currentBlock = append(currentBlock, content)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishCard()
		case strings.HasPrefix(line, frontPrefix):
			if currentState != seeking { // A new front always starts a new card
				finishCard()
			}
			startBlock(line, frontPrefix, readingFront)
		case strings.HasPrefix(line, backPrefix):
			startBlock(line, backPrefix, readingBack)
		case strings.HasPrefix(line, contextPrefix):
			startBlock(line, contextPrefix, readingContext)
		default:
			if currentState != seeking {
				currentBlock = append(currentBlock, line)
			}
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}
