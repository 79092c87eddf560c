package recordapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"messaging-core/internal/faults"
	"messaging-core/internal/models"
	"messaging-core/internal/observability"
)

// HTTPClient implements Client over the record API's REST surface.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	tracer  trace.Tracer
}

// NewHTTPClient builds an HTTPClient. A zero timeout falls back to the
// collaborator default of ten seconds.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("messaging-core/recordapi"),
	}
}

// ListConversations fetches the conversation summaries for the user.
func (c *HTTPClient) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, "list_conversations", http.MethodGet, "/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetMessages fetches one page of history plus the current roster.
func (c *HTTPClient) GetMessages(ctx context.Context, conversationMatricule string, page, limit int) (models.MessagePage, error) {
	path := fmt.Sprintf("/conversations/%s/messages?page=%d&limit=%d",
		url.PathEscape(conversationMatricule), page, limit)
	var resp models.MessagePage
	if err := c.doJSON(ctx, "get_messages", http.MethodGet, path, nil, &resp); err != nil {
		return models.MessagePage{}, err
	}
	return resp, nil
}

// StartConversation creates a conversation with the given participants.
func (c *HTTPClient) StartConversation(ctx context.Context, participantMatricules []string) (models.ConversationDetail, error) {
	body := map[string]any{"participants": participantMatricules}
	var resp models.ConversationDetail
	if err := c.doJSON(ctx, "start_conversation", http.MethodPost, "/conversations/start", body, &resp); err != nil {
		return models.ConversationDetail{}, err
	}
	return resp, nil
}

// SendMessage posts a message as multipart form data.
func (c *HTTPClient) SendMessage(ctx context.Context, req SendMessageRequest) error {
	const op = "send_message"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("conversation_matricule", req.ConversationMatricule)
	if req.Content != "" {
		_ = writer.WriteField("content", req.Content)
	}
	if req.ParentMatricule != "" {
		_ = writer.WriteField("parent_matricule", req.ParentMatricule)
	}
	for _, att := range req.Attachments {
		part, err := writer.CreateFormFile("files", att.Name)
		if err != nil {
			return faults.Network(op, err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return faults.Network(op, err)
		}
	}
	if err := writer.Close(); err != nil {
		return faults.Network(op, err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/messages/send", &buf)
	if err != nil {
		return faults.Network(op, err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(op, httpReq, nil)
}

// EditMessage rewrites a message's content.
func (c *HTTPClient) EditMessage(ctx context.Context, messageMatricule, content string) (models.Message, error) {
	path := fmt.Sprintf("/messages/%s/edit", url.PathEscape(messageMatricule))
	body := map[string]any{"content": content}
	var resp models.Message
	if err := c.doJSON(ctx, "edit_message", http.MethodPut, path, body, &resp); err != nil {
		return models.Message{}, err
	}
	return resp, nil
}

// DeleteMessage removes a message.
func (c *HTTPClient) DeleteMessage(ctx context.Context, messageMatricule string) error {
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageMatricule))
	return c.doJSON(ctx, "delete_message", http.MethodDelete, path, nil, nil)
}

// TogglePin flips a message's pinned flag.
func (c *HTTPClient) TogglePin(ctx context.Context, messageMatricule string) (models.Message, error) {
	path := fmt.Sprintf("/messages/%s/toggle-pin", url.PathEscape(messageMatricule))
	var resp models.Message
	if err := c.doJSON(ctx, "toggle_pin", http.MethodPut, path, nil, &resp); err != nil {
		return models.Message{}, err
	}
	return resp, nil
}

// AddParticipants appends members and returns the updated roster.
func (c *HTTPClient) AddParticipants(ctx context.Context, conversationMatricule string, matricules []string) ([]models.Participant, error) {
	path := fmt.Sprintf("/conversations/%s/participants/add", url.PathEscape(conversationMatricule))
	return c.rosterCall(ctx, "add_participants", http.MethodPost, path, matricules)
}

// RemoveParticipants removes members and returns the updated roster.
func (c *HTTPClient) RemoveParticipants(ctx context.Context, conversationMatricule string, matricules []string) ([]models.Participant, error) {
	path := fmt.Sprintf("/conversations/%s/participants/remove", url.PathEscape(conversationMatricule))
	return c.rosterCall(ctx, "remove_participants", http.MethodDelete, path, matricules)
}

// ToggleArchive flips a conversation between active and archived.
func (c *HTTPClient) ToggleArchive(ctx context.Context, conversationMatricule string) (models.Conversation, error) {
	path := fmt.Sprintf("/conversations/%s/toggle-archive", url.PathEscape(conversationMatricule))
	var resp models.Conversation
	if err := c.doJSON(ctx, "toggle_archive", http.MethodPut, path, nil, &resp); err != nil {
		return models.Conversation{}, err
	}
	return resp, nil
}

// SearchMessages filters a conversation's history server-side.
func (c *HTTPClient) SearchMessages(ctx context.Context, conversationMatricule, query string) ([]models.Message, error) {
	path := fmt.Sprintf("/conversations/%s/search?query=%s",
		url.PathEscape(conversationMatricule), url.QueryEscape(query))
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.doJSON(ctx, "search_messages", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SearchUsers looks up candidate participants.
func (c *HTTPClient) SearchUsers(ctx context.Context, query, roleFilter, scopeFilter string) ([]models.Participant, error) {
	values := url.Values{}
	values.Set("search", query)
	if roleFilter != "" {
		values.Set("roleFilter", roleFilter)
	}
	if scopeFilter != "" {
		values.Set("scopeFilter", scopeFilter)
	}
	var resp struct {
		Users []models.Participant `json:"users"`
	}
	if err := c.doJSON(ctx, "search_users", http.MethodGet, "/users/search?"+values.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *HTTPClient) rosterCall(ctx context.Context, op, method, path string, matricules []string) ([]models.Participant, error) {
	body := map[string]any{"participants": matricules}
	var resp struct {
		Participants []models.Participant `json:"participants"`
	}
	if err := c.doJSON(ctx, op, method, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return faults.Network(op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return faults.Network(op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(op, req, out)
}

func (c *HTTPClient) do(op string, req *http.Request, out any) error {
	ctx, span := c.tracer.Start(req.Context(), "recordapi."+op)
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveRecordAPICall(op, time.Since(start))
	if err != nil {
		return faults.Network(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromStatus(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.Network(op, err)
	}
	return nil
}

// errorFromStatus maps collaborator status codes onto the core's taxonomy.
func errorFromStatus(op string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
	reason := payload.Error
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return faults.NotFound("resource", reason)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return faults.Authorization("%s", reason)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return faults.Validation("%s", reason)
	default:
		return faults.Network(op, fmt.Errorf("status %s: %s", strconv.Itoa(resp.StatusCode), reason))
	}
}
