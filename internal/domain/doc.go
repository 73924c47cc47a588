// Package domain defines the core business entities of the lesson engine:
// words, users, mastery records, task templates, tasks and lessons.
package domain
