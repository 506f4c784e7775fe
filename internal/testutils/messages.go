package testutils

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Error messages returned by the API for common failures.
const (
	BodyJSONRequired    = "Request body should be a JSON object"
	UnprocessableEntity = "Unable to process the request because it's incomplete"
	NotFound            = "This page is unfortunately not available."
)

// Batch statuses of a resource list response.
const (
	BatchSuccessfully = "successfully"
	BatchPending      = "pending"
	BatchCanceled     = "canceled"
	BatchError        = "error"
	BatchMixed        = "mixed"
)

// Numbers are built as float64, the type encoding/json decodes them to.

// ContentMessage describes the expected shape of a JSON object. A field
// value that is a string starting with "[" is a property path, e.g.
// "[user][id]", resolved against the actual content, so generated values
// such as identifiers are accepted as they are.
type ContentMessage struct {
	value    any
	required bool
	names    []string
	fields   map[string]*ContentMessage

	templateSize int
	template     *ContentMessage
}

// NewContentMessage creates a message. A non-empty message adds a
// "message" field with that value.
func NewContentMessage(message string) *ContentMessage {
	c := &ContentMessage{required: true}
	if message != "" {
		c.AddFieldValue("message", message)
	}
	return c
}

// AddField adds a field taking whatever value the content has under the
// same name. A name prefixed with "?" is optional: it is expected only
// when the content has it.
func (c *ContentMessage) AddField(name string) *ContentMessage {
	return c.AddFieldValue(name, "[]")
}

// AddFieldValue adds a field with an expected value or property path.
func (c *ContentMessage) AddFieldValue(name string, value any) *ContentMessage {
	c.addField(name, value)
	return c
}

// AddObject adds a nested object field and returns it for configuration.
func (c *ContentMessage) AddObject(name string) *ContentMessage {
	return c.addField(name, nil)
}

func (c *ContentMessage) addField(name string, value any) *ContentMessage {
	required := true
	if strings.HasPrefix(name, "?") {
		required = false
		name = strings.TrimLeft(name, "?")
	}
	if s, ok := value.(string); ok && s == "[]" {
		value = "[" + name + "]"
	}

	if c.fields == nil {
		c.fields = make(map[string]*ContentMessage)
	}
	if _, exists := c.fields[name]; !exists {
		c.names = append(c.names, name)
	}
	field := &ContentMessage{value: value, required: required}
	c.fields[name] = field
	return field
}

// Field returns the field named name, or nil.
func (c *ContentMessage) Field(name string) *ContentMessage {
	return c.fields[name]
}

// SetFieldTemplate expects size entries built from template, e.g. the
// items of a list.
func (c *ContentMessage) SetFieldTemplate(size int, template *ContentMessage) *ContentMessage {
	c.templateSize = size
	c.template = template
	return c
}

func (c *ContentMessage) hasChildren() bool {
	return len(c.fields) > 0 || c.template != nil
}

// Value returns the expected value, resolving a property path against
// content.
func (c *ContentMessage) Value(content any) any {
	if s, ok := c.value.(string); ok && strings.HasPrefix(s, "[") {
		if obj, ok := content.(map[string]any); ok {
			return lookupPath(obj, s)
		}
	}
	return c.value
}

// Build returns the content this message expects given the actual content.
func (c *ContentMessage) Build(content any) any {
	value := c.Value(content)

	switch {
	case c.template != nil:
		return c.buildTemplate(content)
	case len(c.fields) > 0:
		obj, _ := content.(map[string]any)
		built := make(map[string]any, len(c.names))
		for _, name := range c.names {
			field := c.fields[name]
			fieldContent := any(obj)
			if field.hasChildren() {
				if nested, ok := obj[name]; ok {
					fieldContent = nested
				}
			}

			if field.required {
				built[name] = field.Build(fieldContent)
				continue
			}
			if !field.hasChildren() {
				if v := field.Build(fieldContent); v != nil {
					built[name] = v
				}
			}
		}
		return built
	default:
		return value
	}
}

func (c *ContentMessage) buildTemplate(content any) any {
	switch items := content.(type) {
	case map[string]any:
		keys := make([]string, 0, len(items))
		for k := range items {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		built := make(map[string]any, c.templateSize)
		for i := 0; i < c.templateSize; i++ {
			if i < len(keys) && items[keys[i]] != nil {
				built[keys[i]] = c.template.Build(items[keys[i]])
			} else {
				built[strconv.Itoa(i)] = c.template.Build(nil)
			}
		}
		return built
	default:
		list, _ := content.([]any)
		built := make([]any, c.templateSize)
		for i := range built {
			var item any
			if i < len(list) {
				item = list[i]
			}
			built[i] = c.template.Build(item)
		}
		return built
	}
}

// lookupPath resolves a property path such as "[user][id]". A missing
// segment yields nil.
func lookupPath(obj map[string]any, path string) any {
	var cur any = obj
	for _, seg := range strings.Split(strings.Trim(path, "[]"), "][") {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

// ContentMessageList describes a paginated list response.
type ContentMessageList struct {
	total    int
	limit    int
	page     int
	pages    int
	template *ContentMessage
}

// ListOption configures a ContentMessageList.
type ListOption func(*ContentMessageList)

// WithLimit sets the page size. The default is 20.
func WithLimit(limit int) ListOption {
	return func(l *ContentMessageList) { l.limit = limit }
}

// WithPage sets the current page. The default is 1.
func WithPage(page int) ListOption {
	return func(l *ContentMessageList) { l.page = page }
}

// WithPages sets the page count instead of deriving it from total and limit.
func WithPages(pages int) ListOption {
	return func(l *ContentMessageList) { l.pages = pages }
}

// NewContentMessageList creates a list message for total results.
func NewContentMessageList(total int, opts ...ListOption) *ContentMessageList {
	l := &ContentMessageList{total: total, limit: 20, page: 1}
	for _, opt := range opts {
		opt(l)
	}
	if l.pages == 0 && l.limit > 0 {
		l.pages = int(math.Ceil(float64(l.total) / float64(l.limit)))
	}
	if l.pages < 1 {
		l.pages = 1
	}
	return l
}

// SetTemplate describes every result with template.
func (l *ContentMessageList) SetTemplate(template *ContentMessage) *ContentMessageList {
	l.template = template
	return l
}

// Pages returns the page count.
func (l *ContentMessageList) Pages() int { return l.pages }

// Build returns the list content expected given the actual content.
func (l *ContentMessageList) Build(content map[string]any) map[string]any {
	results := []any{}
	actual, _ := content["results"].([]any)

	if l.template != nil {
		count := min(l.total, l.limit)
		for i := 0; i < count && i < len(actual); i++ {
			results = append(results, l.template.Build(actual[i]))
		}
	} else if actual != nil {
		results = actual
	}

	return map[string]any{
		"total":   float64(l.total),
		"limit":   float64(l.limit),
		"page":    float64(l.page),
		"pages":   float64(l.pages),
		"results": results,
	}
}

// ContentMessageBatch describes the response of a batch operation.
type ContentMessageBatch struct {
	status    string
	hasErrors bool
	size      int
}

// NewContentMessageBatch creates a batch message for size records. An empty
// status means BatchSuccessfully.
func NewContentMessageBatch(size int, status string, hasErrors bool) *ContentMessageBatch {
	if status == "" {
		status = BatchSuccessfully
	}
	return &ContentMessageBatch{status: status, hasErrors: hasErrors, size: size}
}

// Size returns the expected record count.
func (b *ContentMessageBatch) Size() int { return b.size }

// Build returns the batch content expected given the actual content.
func (b *ContentMessageBatch) Build(content map[string]any) map[string]any {
	records, ok := content["records"]
	if !ok {
		records = []any{}
	}
	return map[string]any{
		"status":     b.status,
		"has_errors": b.hasErrors,
		"records":    records,
	}
}

// ErrorMessage describes an error response with nested form errors.
type ErrorMessage struct {
	message  string
	code     int
	parent   *ErrorMessage
	errors   []string
	names    []string
	children map[string]*ErrorMessage
}

// NewErrorMessage creates an error message. An empty message or a zero code
// is left out of the expected content.
func NewErrorMessage(message string, code int) *ErrorMessage {
	return &ErrorMessage{message: message, code: code}
}

// AddError adds an error to this level.
func (e *ErrorMessage) AddError(message string) *ErrorMessage {
	e.errors = append(e.errors, message)
	return e
}

// AddChild adds the errors of a named child field and returns it.
func (e *ErrorMessage) AddChild(name string) *ErrorMessage {
	if e.children == nil {
		e.children = make(map[string]*ErrorMessage)
	}
	if _, exists := e.children[name]; !exists {
		e.names = append(e.names, name)
	}
	child := &ErrorMessage{parent: e}
	e.children[name] = child
	return child
}

// Parent returns the enclosing message, or nil at the root.
func (e *ErrorMessage) Parent() *ErrorMessage { return e.parent }

// Build returns the expected error content. At the root, errors and
// children are nested under "errors".
func (e *ErrorMessage) Build() map[string]any {
	content := map[string]any{}
	if e.message != "" {
		content["message"] = e.message
	}
	if e.code != 0 {
		content["code"] = float64(e.code)
	}

	var errs []any
	for _, msg := range e.errors {
		errs = append(errs, msg)
	}
	var children map[string]any
	if len(e.names) > 0 {
		children = make(map[string]any, len(e.names))
		for _, name := range e.names {
			children[name] = e.children[name].Build()
		}
	}

	if e.parent != nil {
		if errs != nil {
			content["errors"] = errs
		}
		if children != nil {
			content["children"] = children
		}
		return content
	}

	if errs != nil || children != nil {
		nested := map[string]any{}
		if errs != nil {
			nested["errors"] = errs
		}
		if children != nil {
			nested["children"] = children
		}
		content["errors"] = nested
	}
	return content
}

// AssertContentEquals asserts content matches msg and, when valid is not
// nil, equals valid.
func AssertContentEquals(t testing.TB, msg *ContentMessage, content, valid map[string]any) {
	t.Helper()
	assert.Equal(t, msg.Build(content), content)
	if valid != nil && content != nil {
		assert.Equal(t, valid, content)
	}
}

// AssertContentListEquals asserts content matches list and, when valid is
// not nil, that its results equal valid.
func AssertContentListEquals(t testing.TB, list *ContentMessageList, content map[string]any, valid []any) {
	t.Helper()
	assert.Equal(t, list.Build(content), content)
	if valid != nil && content != nil {
		require.Contains(t, content, "results")
		assert.Equal(t, valid, content["results"])
	}
}

// AssertContentBatchEquals asserts content matches batch and holds Size
// records. With a non-empty expectedStatus every record must have it.
func AssertContentBatchEquals(t testing.TB, batch *ContentMessageBatch, content map[string]any, expectedStatus string) {
	t.Helper()
	assert.Equal(t, batch.Build(content), content)
	require.Contains(t, content, "records")
	records, ok := content["records"].([]any)
	require.True(t, ok, "records is not a list")
	require.Len(t, records, batch.Size())

	if expectedStatus == "" {
		return
	}
	for i, r := range records {
		record, ok := r.(map[string]any)
		require.True(t, ok, "record %d is not an object", i)
		require.Contains(t, record, "status")
		require.Contains(t, record, "record")
		assert.Equal(t, expectedStatus, record["status"], "record %d", i)
	}
}

// AssertErrorContentEquals asserts content matches msg, ignoring any
// "exception" entry.
func AssertErrorContentEquals(t testing.TB, msg *ErrorMessage, content map[string]any) {
	t.Helper()
	actual := make(map[string]any, len(content))
	for k, v := range content {
		if k != "exception" {
			actual[k] = v
		}
	}
	assert.Equal(t, msg.Build(), actual)
}
