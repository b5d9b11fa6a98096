package bot

import (
	"fmt"
	"strings"

	"valuebot/internal/domain"
)

const (
	msgGreeting = "Привет! Я бот, который помогает справляться с тревожностью.\n" +
		"Команды:\n" +
		"/values - назвать ценность\n" +
		"/myvalues - мои ценности\n" +
		"/mood - загрузить фото\n" +
		"/reset - начать заново\n" +
		"Задай вопрос о тревожности или отправь голосовое сообщение!"

	msgHelp = "Не знаю такой команды.\n" +
		"Команды:\n" +
		"/values - назвать ценность\n" +
		"/myvalues - мои ценности\n" +
		"/mood - загрузить фото\n" +
		"/reset - начать заново"

	msgAskValue    = "Назови свою ценность (текстом или голосом)."
	msgAskPhoto    = "Отправь фото, чтобы я проанализировал настроение."
	msgMoodFmt     = "Настроение на фото: %s"
	msgPhotoError  = "Ошибка при анализе фото."
	msgVoiceError  = "Ошибка при обработке голосового сообщения."
	msgNoSpeech    = "Не удалось разобрать голосовое сообщение. Попробуй ещё раз или напиши текстом."
	msgError       = "Ошибка при обработке сообщения."
	msgNoValues    = "У тебя пока нет сохранённых ценностей. Назови первую: /values"
	msgUnsupported = "Я понимаю текст, голосовые сообщения и фото."
)

// listValueLimit caps /myvalues output.
const listValueLimit = 20

func formatValues(vals []domain.UserValue) string {
	if len(vals) == 0 {
		return msgNoValues
	}
	var b strings.Builder
	b.WriteString("Твои ценности:\n")
	for i, v := range vals {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, v.Value, v.CreatedAt.Format("02.01.2006"))
	}
	return strings.TrimRight(b.String(), "\n")
}
