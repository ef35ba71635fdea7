package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dialogbot/internal/models"
	"dialogbot/internal/service"
)

var modelLabels = []struct {
	Label string
	Model models.ModelType
}{
	{"GPT-4o", models.ModelGPT4o},
	{"GPT-4o mini", models.ModelGPT4oMini},
	{"o1", models.ModelO1},
	{"o1 mini", models.ModelO1Mini},
}

var roleLabels = []struct {
	Label string
	Role  models.RoleType
}{
	{"Ассистент", models.RoleGeneral},
	{"Переводчик", models.RoleTranslator},
	{"Редактор", models.RoleEditor},
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💬 Диалоги", Action{Kind: ActionShowDialogs}.Encode()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Оплата", Action{Kind: ActionShowBuy}.Encode()),
		),
	)
}

func buyKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Пополнить баланс", Action{Kind: ActionTopUp}.Encode()),
		),
	}
	for _, name := range service.PlanNames() {
		plan, ok := service.PlanByName(name)
		if !ok {
			continue
		}
		label := fmt.Sprintf("Подписка %s — %.2f", plan.Name, float64(plan.PriceMinorUnits)/100)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, Action{Kind: ActionSubscribe, Arg: plan.Name}.Encode()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅ Меню", Action{Kind: ActionMainMenu}.Encode()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dialogsKeyboard(dialogs []models.Dialog) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(dialogs)+2)
	for _, d := range dialogs {
		label := fmt.Sprintf("#%d · %s · %s", d.ID, d.ModelType, d.RoleType)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, Action{Kind: ActionOpenDialog, Arg: strconv.FormatInt(d.ID, 10)}.Encode()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Новый диалог", Action{Kind: ActionNewDialog}.Encode()),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅ Меню", Action{Kind: ActionMainMenu}.Encode()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func modelKeyboard(kind ActionKind) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(modelLabels))
	for _, m := range modelLabels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(m.Label, Action{Kind: kind, Arg: string(m.Model)}.Encode()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func roleKeyboard(kind ActionKind) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(roleLabels))
	for _, r := range roleLabels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.Label, Action{Kind: kind, Arg: string(r.Role)}.Encode()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func dialogKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Текст", Action{Kind: ActionModeText}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Изображение", Action{Kind: ActionModeImage}.Encode()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Настройки", Action{Kind: ActionSettings}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Сбросить контекст", Action{Kind: ActionResetContext}.Encode()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅ Меню", Action{Kind: ActionMainMenu}.Encode()),
		),
	)
}

var historyLimitChoices = []int{5, 10, 20, 50}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup()
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, modelKeyboard(ActionSetModel).InlineKeyboard...)
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, roleKeyboard(ActionSetRole).InlineKeyboard...)
	limits := make([]tgbotapi.InlineKeyboardButton, 0, len(historyLimitChoices))
	for _, limit := range historyLimitChoices {
		limits = append(limits, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("История: %d", limit),
			Action{Kind: ActionSetLimit, Arg: strconv.Itoa(limit)}.Encode(),
		))
	}
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, limits)
	keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅ Меню", Action{Kind: ActionMainMenu}.Encode()),
	))
	return keyboard
}
