// Package message provides the business boundary for anonymous HR messages.
// It defines the Service (submission, status workflow, settings), the Store
// interface (persistence), the field access table, and the domain models.
package message
