package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tmurph/go-chatsync/internal/types"
)

const defaultRequestTimeout = 15 * time.Second

// HttpChatAPI implements ChatAPI against the messaging backend's REST
// surface.
type HttpChatAPI struct {
	baseUrl string
	token   string
	http    *http.Client
}

func NewHttpChatAPI(baseUrl, token string) *HttpChatAPI {
	return &HttpChatAPI{
		baseUrl: baseUrl,
		token:   token,
		http: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

type apiErrorBody struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (c *HttpChatAPI) do(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.errorFromResponse(op, resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *HttpChatAPI) errorFromResponse(op string, resp *http.Response) error {
	var apiErr apiErrorBody
	// a failed decode leaves the message empty, which is fine
	json.NewDecoder(resp.Body).Decode(&apiErr)

	if resp.StatusCode >= http.StatusInternalServerError {
		return &TransientError{
			Op:  op,
			Err: fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message),
		}
	}
	return fmt.Errorf("%s: server returned %d: %s", op, resp.StatusCode, apiErr.Message)
}

func (c *HttpChatAPI) ListConversations(ctx context.Context) ([]types.Conversation, error) {
	var convs []types.Conversation
	if err := c.do(ctx, "ListConversations", http.MethodGet, "/api/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *HttpChatAPI) GetConversation(ctx context.Context, conversationId string) (types.Conversation, error) {
	var conv types.Conversation
	path := "/api/conversations/" + url.PathEscape(conversationId)
	if err := c.do(ctx, "GetConversation", http.MethodGet, path, nil, &conv); err != nil {
		return types.Conversation{}, err
	}
	return conv, nil
}

func (c *HttpChatAPI) CreateConversation(ctx context.Context, params CreateConversationParams) (types.Conversation, error) {
	var conv types.Conversation
	if err := c.do(ctx, "CreateConversation", http.MethodPost, "/api/conversations", params, &conv); err != nil {
		return types.Conversation{}, err
	}
	return conv, nil
}

func (c *HttpChatAPI) GetMessages(ctx context.Context, conversationId string, sinceSeq, limit int) ([]types.Message, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationId)
	if sinceSeq > 0 {
		q.Set("since", strconv.Itoa(sinceSeq))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var msgs []types.Message
	if err := c.do(ctx, "GetMessages", http.MethodGet, "/api/messages?"+q.Encode(), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *HttpChatAPI) SendMessage(ctx context.Context, params SendMessageParams) (types.Message, error) {
	var reqBody io.Reader
	buf, err := json.Marshal(params)
	if err != nil {
		return types.Message{}, fmt.Errorf("marshal request: %w", err)
	}
	reqBody = bytes.NewReader(buf)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/api/messages", reqBody)
	if err != nil {
		return types.Message{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Message{}, &TransientError{Op: "SendMessage", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < http.StatusBadRequest:
		var msg types.Message
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return types.Message{}, fmt.Errorf("SendMessage: decode response: %w", err)
		}
		return msg, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return types.Message{}, c.errorFromResponse("SendMessage", resp)
	default:
		// a 4xx on message submission is a rejection, not a transport
		// failure
		var apiErr apiErrorBody
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return types.Message{}, &SendRejectedError{
			StatusCode: resp.StatusCode,
			Reason:     apiErr.Message,
		}
	}
}

func (c *HttpChatAPI) SubmitReadReceipt(ctx context.Context, conversationId string, seqId int) error {
	body := struct {
		ConversationId string `json:"conversation_id"`
		SeqId          int    `json:"seq_id"`
	}{conversationId, seqId}

	return c.do(ctx, "SubmitReadReceipt", http.MethodPost, "/api/receipts", body, nil)
}

func (c *HttpChatAPI) membershipRequest(ctx context.Context, op, method, conversationId, participantId string) error {
	body := struct {
		ParticipantId string `json:"participant_id"`
	}{participantId}

	path := "/api/conversations/" + url.PathEscape(conversationId) + "/participants"

	var reqBody io.Reader
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	reqBody = bytes.NewReader(buf)

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < http.StatusBadRequest:
		io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusForbidden:
		var apiErr apiErrorBody
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &MembershipConflictError{
			ConversationId: conversationId,
			ParticipantId:  participantId,
			Reason:         apiErr.Message,
		}
	default:
		return c.errorFromResponse(op, resp)
	}
}

func (c *HttpChatAPI) AddParticipant(ctx context.Context, conversationId, participantId string) error {
	return c.membershipRequest(ctx, "AddParticipant", http.MethodPost, conversationId, participantId)
}

func (c *HttpChatAPI) RemoveParticipant(ctx context.Context, conversationId, participantId string) error {
	return c.membershipRequest(ctx, "RemoveParticipant", http.MethodDelete, conversationId, participantId)
}
