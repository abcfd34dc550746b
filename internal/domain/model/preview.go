// preview.go — элементы структурного preview, полученные от сервиса анализа.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ItemID — идентификатор элемента preview (номер вопроса).
// Сервис присылает его то строкой ("Q1"), то числом (1), поэтому
// при декодировании принимаются оба варианта.
type ItemID string

// UnmarshalJSON принимает JSON-строку или JSON-число.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	s, err := decodeFlexString(data)
	if err != nil {
		return fmt.Errorf("номер элемента: %w", err)
	}
	*id = ItemID(s)
	return nil
}

// FlexString — строковое поле, которое сервис может прислать числом.
type FlexString string

// UnmarshalJSON принимает JSON-строку или JSON-число.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	s, err := decodeFlexString(data)
	if err != nil {
		return err
	}
	*f = FlexString(s)
	return nil
}

// decodeFlexString декодирует JSON-строку, число или null в строку.
func decodeFlexString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("ожидалась строка или число: %w", err)
	}
	return n.String(), nil
}

// PreviewItem — один структурно выделенный элемент документа
// (например, вопрос) с предложенным количеством пунктов ответа.
type PreviewItem struct {
	// Number — идентификатор, ключ для OverrideMap (уникален в пределах preview)
	Number ItemID `json:"number"`
	// Text — текст элемента
	Text string `json:"text"`
	// Marks — количество баллов за элемент
	Marks float64 `json:"marks"`
	// SuggestedCount — предложенное сервисом количество пунктов (> 0)
	SuggestedCount int `json:"suggestedBullets"`
}

// UnmarshalJSON нормализует SuggestedCount: сервис может прислать
// число с плавающей точкой или строку, а значения < 1 приводятся к 1.
func (p *PreviewItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Number    ItemID          `json:"number"`
		Text      string          `json:"text"`
		Marks     json.RawMessage `json:"marks"`
		Suggested json.RawMessage `json:"suggestedBullets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Number = raw.Number
	p.Text = raw.Text
	p.Marks = parseLooseFloat(raw.Marks)
	p.SuggestedCount = int(parseLooseFloat(raw.Suggested))
	if p.SuggestedCount < 1 {
		p.SuggestedCount = 1
	}
	return nil
}

// parseLooseFloat разбирает JSON-число или строку с числом; иначе 0.
func parseLooseFloat(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}
