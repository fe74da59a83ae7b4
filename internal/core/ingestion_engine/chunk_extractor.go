package ingestion_engine

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// streamFragments emits the extracted lines as fragments of at most
// maxChars runes, splitting lines that are longer on their own.
func streamFragments(ctx context.Context, g *errgroup.Group, lines []string, maxChars int) <-chan string {
	out := make(chan string, 32)

	g.Go(func() error {
		defer close(out)
		for _, line := range lines {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			r := []rune(line)
			for len(r) > 0 {
				n := min(len(r), maxChars)
				select {
				case out <- string(r[:n]):
				case <-ctx.Done():
					return ctx.Err()
				}
				r = r[n:]
			}
		}
		return nil
	})

	return out
}

// streamChunk groups incoming fragments into chunks of at most maxChars runes
// (newline separators included), keeping fragment order.
func streamChunk(ctx context.Context, g *errgroup.Group, frags <-chan string, maxChars int) <-chan chunk {
	out := make(chan chunk, 8)

	g.Go(func() error {
		defer close(out)

		var (
			buf  []string
			size int
			pos  int
		)

		flush := func() error {
			if len(buf) == 0 {
				return nil
			}
			text := strings.Join(buf, "\n")
			ch := chunk{Pos: pos, Text: text, TokenCnt: approxTokens(text)}
			pos++

			select {
			case out <- ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			slog.Debug("Chunker: emitted chunk", "pos", ch.Pos, "tokens", ch.TokenCnt, "fragments", len(buf))
			buf = buf[:0]
			size = 0
			return nil
		}

		for frag := range frags {
			n := len([]rune(frag))
			sep := 0
			if len(buf) > 0 {
				sep = 1
			}
			if size+sep+n > maxChars {
				if err := flush(); err != nil {
					return err
				}
				sep = 0
			}
			buf = append(buf, frag)
			size += sep + n
		}

		return flush()
	})

	return out
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
