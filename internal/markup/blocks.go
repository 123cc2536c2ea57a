package markup

import (
	"regexp"
	"strings"
)

// BlockKind is the block-level role of a line group
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
)

// Block is a block-level markdown element. Headings and paragraphs carry
// Text; lists carry Items.
type Block struct {
	Kind  BlockKind
	Level int
	Text  string
	Items []string
}

var headingPattern = regexp.MustCompile(`^(#{1,4})\s+(.*)$`)

// ParseBlocks splits a text run into headings, bullet lists and paragraphs.
// Lines are trimmed; an empty line closes any open list.
func ParseBlocks(text string) []Block {
	var blocks []Block
	var list *Block

	closeList := func() {
		if list != nil {
			blocks = append(blocks, *list)
			list = nil
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			closeList()
			continue
		}

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			closeList()
			blocks = append(blocks, Block{Kind: BlockHeading, Level: len(m[1]), Text: m[2]})
			continue
		}

		if strings.HasPrefix(line, "- ") {
			if list == nil {
				list = &Block{Kind: BlockList}
			}
			list.Items = append(list.Items, strings.TrimSpace(line[2:]))
			continue
		}

		closeList()
		blocks = append(blocks, Block{Kind: BlockParagraph, Text: line})
	}
	closeList()

	return blocks
}
