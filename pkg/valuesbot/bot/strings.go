package bot

// User-facing replies.
const (
	helloMsg = "Привет! 😊\nЭто AiVoiceAssistant! Моя цель - выявить твои жизненные ценности. Я буду рада, если ты мне поможешь в этом."

	helpMsg = "Напиши, пожалуйста, свои жизненные ценности!"

	waitMsg = "Подождите, пожалуйста...😇"

	clearMsg = "Контекст очищен. Давай начнём сначала!"

	keyValuesDefinedMsg = "В ходе нашего обсуждения я выделила ваши следующие ценности: "

	keyValuesNotDefinedMsg = "К сожалению, мне не удалось точно определить ваши ценности. Давайте попробуем обсудить это еще раз!"

	apologyMsg = "Извините, что-то пошло не так. Попробуйте, пожалуйста, еще раз."

	// emotionPrompt is sent to the assistant followed by the detected emotion.
	emotionPrompt = "Мое эмоциональное состояние: "
)
