package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnrepairable - в ответе не удалось найти структурно валидный JSON.
// Получив эту ошибку, вызывающий каскад переходит к следующей стадии.
var ErrUnrepairable = errors.New("ответ не содержит восстановимого JSON")

// ExtractJSON пытается привести сырой текст ответа LLM к валидному JSON.
// Стратегии применяются по порядку до первого успеха:
//  1. текст уже валиден - возвращается без изменений;
//  2. срезаются обрамляющие markdown code-fence маркеры;
//  3. берется подстрока от первой '{' до последней '}'.
//
// Семантические дефекты JSON (висячие запятые и т.п.) намеренно не чинятся:
// узкая область ремонта не должна маскировать дрейф контракта провайдера.
func ExtractJSON(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrUnrepairable
	}

	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	if unfenced, ok := stripCodeFences(trimmed); ok {
		if json.Valid([]byte(unfenced)) {
			log.Debug().Msg("JSON восстановлен после удаления code-fence маркеров")
			return []byte(unfenced), nil
		}
		// Продолжаем со снятыми маркерами: внутри может быть JSON с мусором вокруг
		trimmed = unfenced
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			log.Debug().Int("start", start).Int("end", end).Msg("JSON восстановлен по границам фигурных скобок")
			return []byte(candidate), nil
		}
	}

	return nil, ErrUnrepairable
}

// stripCodeFences удаляет обрамление вида ```json ... ``` вокруг текста.
// Возвращает (текст, true), если обрамление было найдено и снято.
func stripCodeFences(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}

	body := s[3:]
	// Первая строка может содержать метку языка ("json" и т.п.)
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s, false
	}
	body = body[nl+1:]

	closing := strings.LastIndex(body, "```")
	if closing < 0 {
		// Незакрытый fence: берем все после открывающего маркера
		return strings.TrimSpace(body), true
	}

	return strings.TrimSpace(body[:closing]), true
}
