// Package compose turns a Symptom, a free-text note and a Markdown template
// into a ready-to-send notice: the template is filled with percent-style
// named placeholders, rendered to HTML with inlined highlighting styles and
// packed into a multipart/alternative message.
package compose
