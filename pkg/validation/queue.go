/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validation

import (
	"errors"

	"github.com/google/uuid"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
)

// ErrResultAlreadySet is returned when a result is recorded twice for the same item.
var ErrResultAlreadySet = errors.New("validation result already set")

// QueueItem is a token waiting for, or holding, its validation result.
type QueueItem struct {
	ID       string
	RawToken string
	// Origin is the DID of the token this one was embedded in. It is blank for the token passed to Validate.
	Origin string

	token  *claimtoken.ClaimToken
	result *Response
}

// ClaimToken returns the classified token, or nil before classification.
func (i *QueueItem) ClaimToken() *claimtoken.ClaimToken {
	return i.token
}

// SetClaimToken records the classification of the item.
func (i *QueueItem) SetClaimToken(token *claimtoken.ClaimToken) {
	i.token = token
}

// SetResult records the validation result. An item's result can only be set once.
func (i *QueueItem) SetResult(result *Response) error {
	if i.result != nil {
		return ErrResultAlreadySet
	}

	i.result = result

	return nil
}

// Result returns the validation result, or nil if the item wasn't validated.
func (i *QueueItem) Result() *Response {
	return i.result
}

// Validated reports whether a result has been recorded.
func (i *QueueItem) Validated() bool {
	return i.result != nil
}

// Queue is a FIFO work-list of tokens. Items appended while the queue is being drained are
// processed after every item already in it, which makes the traversal breadth-first.
type Queue struct {
	items []*QueueItem
	next  int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// AddToken appends a raw token with no origin.
func (q *Queue) AddToken(rawToken string) *QueueItem {
	return q.AddNestedToken(rawToken, "")
}

// AddNestedToken appends a raw token found inside the token issued by origin.
func (q *Queue) AddNestedToken(rawToken, origin string) *QueueItem {
	item := &QueueItem{ID: uuid.New().String(), RawToken: rawToken, Origin: origin}
	q.items = append(q.items, item)

	return item
}

// AddClaimToken appends an already classified token.
func (q *Queue) AddClaimToken(token *claimtoken.ClaimToken, origin string) *QueueItem {
	item := &QueueItem{ID: token.ID, RawToken: token.RawToken, Origin: origin, token: token}
	q.items = append(q.items, item)

	return item
}

// AddEmbeddedToken appends a token found inside another one, classified when its type is known.
func (q *Queue) AddEmbeddedToken(token EmbeddedToken, origin string) *QueueItem {
	if token.Type.Valid() {
		return q.AddClaimToken(claimtoken.New(token.Type, token.RawToken, ""), origin)
	}

	return q.AddNestedToken(token.RawToken, origin)
}

// GetNextToken pops the front of the queue. It returns false once every item has been popped.
func (q *Queue) GetNextToken() (*QueueItem, bool) {
	if q.next >= len(q.items) {
		return nil, false
	}

	item := q.items[q.next]
	q.next++

	return item, true
}

// Len returns the number of items ever added.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns every item in insertion order.
func (q *Queue) Items() []*QueueItem {
	items := make([]*QueueItem, len(q.items))
	copy(items, q.items)

	return items
}

// GetResult aggregates the item results. Any failed item fails the whole result, and the first failed
// item in queue order supplies the status and error. When every item succeeded, the response of the
// first item is returned with the claims of all items merged into it (earlier items win on key
// collisions) and every classified token listed.
func (q *Queue) GetResult() *Response {
	if len(q.items) == 0 {
		return NewResponse().Fail(StatusNotValidated, "no token was validated")
	}

	for _, item := range q.items {
		if item.result == nil {
			return NewResponse().Fail(StatusNotValidated, "token %s was not validated", item.ID)
		}

		if item.result.Failed() {
			failure := *item.result
			failure.Tokens = q.classifiedTokens()

			return &failure
		}
	}

	aggregate := *q.items[0].result
	aggregate.Claims = make(map[string]interface{})

	for _, item := range q.items {
		for name, value := range item.result.Claims {
			if _, exists := aggregate.Claims[name]; !exists {
				aggregate.Claims[name] = value
			}
		}
	}

	aggregate.Tokens = q.classifiedTokens()

	return &aggregate
}

func (q *Queue) classifiedTokens() []*claimtoken.ClaimToken {
	var tokens []*claimtoken.ClaimToken

	for _, item := range q.items {
		if item.token != nil {
			tokens = append(tokens, item.token)
		}
	}

	return tokens
}
