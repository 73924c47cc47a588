package main

import (
	"context"
	"fmt"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/store"
)

// seedTemplates loads the built-in task templates. Template creation is
// idempotent by name, so restarts do not duplicate them.
func seedTemplates(ctx context.Context, templates store.TemplateStore, language string) error {
	defs, err := defaultTemplates(language)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := templates.Create(ctx, def); err != nil {
			return fmt.Errorf("creating template %q: %w", def.Name, err)
		}
	}
	return nil
}

// defaultTemplates are the exercise blueprints shipped with the server: one
// production task (translate a sentence) and one recognition task (pick the
// right translation).
func defaultTemplates(language string) ([]*domain.TemplateDef, error) {
	translate, err := domain.NewTemplateDef(
		"translate-sentence",
		domain.TaskTypeOneWayTranslation,
		"Übersetze ins Englische: $sentence",
		"Write one short, natural sentence in the source language that uses every target word. "+
			"The learner translates it into English; the answer is the English translation.",
		[]string{
			"Das Haus ist groß. -> The house is big.",
			"Ich esse einen Apfel. -> I am eating an apple.",
		},
		[]domain.Parameter{
			{Name: "sentence", Description: "a short sentence using every target word", Position: 1},
		},
		language, "en",
	)
	if err != nil {
		return nil, fmt.Errorf("building translate template: %w", err)
	}

	choose, err := domain.NewTemplateDef(
		"choose-translation",
		domain.TaskTypeFourChoice,
		"Welche Übersetzung ist richtig? $question\nA) $A\nB) $B\nC) $C\nD) $D",
		"Ask for the English translation of the target word. Offer four options of which "+
			"exactly one is correct; the answer is the letter of the correct option.",
		[]string{
			"Welche Übersetzung ist richtig? Was bedeutet „Apfel“?\nA) apple\nB) pear\nC) plum\nD) grape -> A",
		},
		[]domain.Parameter{
			{Name: "question", Description: "the question naming the target word", Position: 1},
			{Name: "A", Description: "option A", Position: 2},
			{Name: "B", Description: "option B", Position: 3},
			{Name: "C", Description: "option C", Position: 4},
			{Name: "D", Description: "option D", Position: 5},
		},
		language, "en",
	)
	if err != nil {
		return nil, fmt.Errorf("building four-choice template: %w", err)
	}

	return []*domain.TemplateDef{translate, choose}, nil
}
