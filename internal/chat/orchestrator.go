// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/jeranaias/fireside/internal/cloud"
	"github.com/jeranaias/fireside/internal/conversation"
)

// Store is the subset of the conversation store the orchestrator needs.
type Store interface {
	Load(ctx context.Context, id string) (*conversation.Conversation, bool)
	AppendTurnPair(ctx context.Context, id, userText, modelText string) (string, error)
}

// TurnRequest is one user turn.
type TurnRequest struct {
	// ConversationID is empty to start a new conversation.
	ConversationID string
	Prompt         string
	Settings       *cloud.Settings
}

// TurnResult is the model reply and the authoritative conversation id.
type TurnResult struct {
	ResponseText   string `json:"responseText"`
	ConversationID string `json:"conversationId"`
}

// Orchestrator coordinates the store and the model for a single turn.
// It holds no per-conversation state and is safe for concurrent use.
type Orchestrator struct {
	store Store
	model cloud.Generator
}

// NewOrchestrator wires a store and a model.
func NewOrchestrator(store Store, model cloud.Generator) *Orchestrator {
	return &Orchestrator{store: store, model: model}
}

// HandleTurn runs one turn. The model is called before anything is written;
// a model failure leaves the store untouched. No retries are attempted.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, badRequest(errors.New("prompt is empty"))
	}
	if err := req.Settings.Validate(); err != nil {
		return nil, badRequest(err)
	}

	id := ""
	var history []conversation.ModelTurn

	if req.ConversationID != "" {
		normalized, err := conversation.NormalizeID(req.ConversationID)
		if err != nil {
			return nil, badRequest(err)
		}
		if conv, ok := o.store.Load(ctx, normalized); ok {
			id = normalized
			history = conversation.FormatHistory(conv.Turns)
		} else {
			log.Printf("CONVERSATION_STALE | id=%s action=start_new", normalized)
		}
	}

	// Absent, not empty: the model treats nil as "no prior session".
	if len(history) == 0 {
		history = nil
	}

	reply := o.model.Generate(ctx, req.Prompt, history, req.Settings)
	if cloud.IsErrorReply(reply) {
		log.Printf("TURN_MODEL_ERROR | id=%s", id)
		return nil, &ModelError{Detail: reply}
	}

	savedID, err := o.store.AppendTurnPair(ctx, id, req.Prompt, reply)
	if err != nil {
		log.Printf("TURN_STORAGE_ERROR | id=%s error=%v", id, err)
		return nil, &StorageError{ConversationID: id, Err: err}
	}

	log.Printf("TURN_OK | id=%s history=%d", savedID, len(history))
	return &TurnResult{ResponseText: reply, ConversationID: savedID}, nil
}
