// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream carries streamed reply fragments from a provider to the
// terminal renderer and decides when a streaming session ends.
//
// # Key Types
//
//   - ReplyEvent: a Text fragment or the final Done marker
//   - AbortSignal: one-way ctrl-c / ctrl-d flag shared by all parties
//   - ReplyStreamHandler: ordered, non-blocking-after-abort event sink
//   - Session: races retrieval against the abort flag and process interrupts
//
// # Usage
//
//	events := make(chan stream.ReplyEvent, 64)
//	abort := stream.NewAbortSignal()
//	handler := stream.NewReplyStreamHandler(events, abort)
//
//	go renderer.Stream(ctx, events, abort)
//	err := stream.NewSession().Run(ctx, handler, func(ctx context.Context, h *stream.ReplyStreamHandler) error {
//	    return provider.SendStreaming(ctx, h)
//	})
package stream
