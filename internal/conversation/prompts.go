package conversation

import "fmt"

const (
	textPickDate      = "Выберите дату, за которую хотите внести данные:"
	textPickWithKeys  = "Пожалуйста, выберите дату с помощью кнопок выше."
	textEnterNumber   = "Пожалуйста, введите число (например 1.5)."
	textSaveFailed    = "Произошла ошибка при сохранении данных."
	textSavedTemplate = "Данные за %s успешно сохранены! Спасибо!"
)

// prompt returns the question asked at stage st for target t.
func prompt(st Stage, t Target) string {
	if t.Flow == FlowToday {
		switch st {
		case StageAwaitBedtime:
			return "Легли ли вы вчера до 00:00? (да/нет)"
		case StageAwaitGadgets:
			return "Использовали ли вы вчера гаджеты после 23:00? (да/нет)"
		case StageAwaitDiet:
			return "Питались ли вы вчера по рациону? (да/нет)"
		case StageAwaitSport:
			return "Сколько часов вы вчера занимались спортом? (введите число)"
		}
		return ""
	}

	d := t.Label()
	switch st {
	case StageAwaitBedtime:
		return fmt.Sprintf("Легли ли вы %s до 00:00? (да/нет)", d)
	case StageAwaitGadgets:
		return fmt.Sprintf("Использовали ли вы %s гаджеты после 23:00? (да/нет)", d)
	case StageAwaitDiet:
		return fmt.Sprintf("Питались ли вы %s по рациону? (да/нет)", d)
	case StageAwaitSport:
		return fmt.Sprintf("Сколько часов вы занимались спортом %s? (введите число)", d)
	}
	return ""
}

// questionKeyboard is the keyboard that goes with a question.
func questionKeyboard(st Stage) Keyboard {
	if st == StageAwaitSport {
		return RemoveKeyboard
	}
	return YesNoKeyboard
}
