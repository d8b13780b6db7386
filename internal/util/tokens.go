// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// TokenEncoding is the BPE vocabulary token counts are measured in.
const TokenEncoding = "cl100k_base"

// tokenPattern matches optional leading whitespace followed by up to four
// non-space characters, or a trailing whitespace run. Every byte of the input
// falls into exactly one match.
var tokenPattern = regexp.MustCompile(`\s*\S{1,4}|\s+`)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
	encoderErr  error
)

// Encoder returns the shared cl100k_base encoder. The vocabulary is embedded,
// so no network access is needed.
func Encoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		encoder, encoderErr = tiktoken.GetEncoding(TokenEncoding)
	})
	return encoder, encoderErr
}

// Tokenize splits text into small pieces resembling model tokens. Joining
// the result always reproduces text exactly. Used to pace dry-run replies.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return tokenPattern.FindAllString(text, -1)
}

// CountTokens returns the number of cl100k_base tokens in text. Special
// token markers are counted as ordinary text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := Encoder()
	if err != nil {
		return EstimateTokens(text)
	}
	return len(enc.EncodeOrdinary(text))
}

// EstimateTokens approximates a token count without a vocabulary, blending
// a word count with a four-characters-per-token estimate.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := len(text)
	return (words + chars/4) / 2
}
