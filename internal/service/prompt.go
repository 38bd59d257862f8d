package service

import (
	"fmt"

	"story-server/internal/model"
)

// storySystemPrompt - системная роль для текстовых провайдеров.
const storySystemPrompt = "You are a creative storyteller who creates engaging picture stories."

// storyPromptTemplate - шаблон пользовательского промпта. Явно требует JSON
// в форме StoryDraft, чтобы ответ можно было распарсить без постобработки.
const storyPromptTemplate = `Create a %s story for %s based on the following prompt: "%s"

Requirements:
- Create exactly %d scenes
- Each scene should be engaging and visually descriptive
- The story should have a clear beginning, middle, and end
- Make it appropriate for %s
- Include elements that would make great animated images

Respond ONLY with a JSON object of the following shape, without any extra text:
{
    "title": "Story title",
    "scenes": [
        {
            "id": 1,
            "description": "Detailed scene description",
            "imagePrompt": "Visual prompt for image generation"
        }
    ]
}

Each imagePrompt should describe setting, characters, actions and lighting in a
bright animated/cartoon style with rounded shapes and bold colors, suitable for
a children's storybook.`

// buildStoryPrompt собирает системный и пользовательский промпты для запроса.
func buildStoryPrompt(req model.StoryRequest) (system string, user string) {
	user = fmt.Sprintf(storyPromptTemplate,
		req.Genre, req.AgeGroup, req.Prompt, req.SceneCount, req.AgeGroup)
	return storySystemPrompt, user
}
