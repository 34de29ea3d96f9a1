// Package boardclient talks to the managehub HTTP API on behalf of the
// desktop and WASM board client.
package boardclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type View struct {
	Columns []Column `json:"columns"`
	Total   int      `json:"total"`
}

type Column struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Label  string `json:"label"`
	Cards  []Card `json:"cards"`
}

type Card struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
	Assignee    string `json:"assignee"`
	WorkOrder   string `json:"work_order"`
	InTransit   bool   `json:"in_transit"`
}

type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type WorkOrder struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// IDs returns the ids of every card in the view.
func (v View) IDs() map[string]bool {
	ids := make(map[string]bool, v.Total)
	for _, c := range v.Columns {
		for _, card := range c.Cards {
			ids[card.ID] = true
		}
	}
	return ids
}

// Prune deletes the entries of m whose key is not a card in v, keeping keep.
func Prune[T any](m map[string]T, v View, keep string) {
	ids := v.IDs()
	for id := range m {
		if !ids[id] && id != keep {
			delete(m, id)
		}
	}
}

// Client is a thin JSON client for the board API.
type Client struct {
	Base string // "/" in the browser, "http://host:port/" on desktop
	HTTP *http.Client
}

// New returns a client for the API rooted at base.
func New(base string) *Client {
	return &Client{Base: base, HTTP: http.DefaultClient}
}

// Board fetches the full board, or the filtered board when query is not empty.
func (c *Client) Board(query string) (View, error) {
	path := "api/board"
	if query != "" {
		path = "api/board/search?q=" + url.QueryEscape(query)
	}
	var v View
	err := c.getJSON(path, &v)
	return v, err
}

func (c *Client) Employees() ([]Employee, error) {
	var out []Employee
	err := c.getJSON("api/employees", &out)
	return out, err
}

func (c *Client) WorkOrders() ([]WorkOrder, error) {
	var out []WorkOrder
	err := c.getJSON("api/work-orders", &out)
	return out, err
}

// Send issues a request and turns a non-2xx response into its error message.
func (c *Client) Send(method, path string, body []byte) error {
	req, err := http.NewRequest(method, c.Base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return responseError(method, path, resp)
	}
	return nil
}

func (c *Client) getJSON(path string, v any) error {
	resp, err := c.HTTP.Get(c.Base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return responseError("GET", path, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func responseError(method, path string, resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
		return fmt.Errorf("%s", e.Error)
	}
	return fmt.Errorf("%s %s: %s", method, path, resp.Status)
}
