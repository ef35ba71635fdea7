package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dialogbot/internal/config"
	"dialogbot/internal/models"
	"dialogbot/internal/service"
)

type Bot struct {
	cfg           config.Config
	api           *tgbotapi.BotAPI
	log           *slog.Logger
	users         *service.UserService
	dialogs       *service.DialogService
	balance       *service.BalanceService
	subscriptions *service.SubscriptionService
	generation    *service.GenerationService
	payments      *service.PaymentService
	state         *StateManager
}

func NewBot(
	cfg config.Config,
	api *tgbotapi.BotAPI,
	log *slog.Logger,
	users *service.UserService,
	dialogs *service.DialogService,
	balance *service.BalanceService,
	subscriptions *service.SubscriptionService,
	generation *service.GenerationService,
	payments *service.PaymentService,
) *Bot {
	return &Bot{
		cfg:           cfg,
		api:           api,
		log:           log,
		users:         users,
		dialogs:       dialogs,
		balance:       balance,
		subscriptions: subscriptions,
		generation:    generation,
		payments:      payments,
		state:         NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
			} else if update.PreCheckoutQuery != nil {
				if err := b.payments.HandlePreCheckout(b.api, update.PreCheckoutQuery); err != nil {
					b.log.Error("pre-checkout failed", "err", err)
				}
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	session := b.state.Get(msg.Chat.ID)
	switch session.State {
	case StateAwaitingPrompt:
		b.handlePrompt(ctx, msg, session)
	default:
		b.sendText(msg.Chat.ID, "Откройте /menu и выберите диалог, чтобы начать общение.")
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		b.log.Error("ensure user payment", "err", err)
		return
	}
	if err := b.payments.HandleSuccessfulPayment(ctx, user, msg.SuccessfulPayment); err != nil {
		b.log.Error("process successful payment", "err", err)
		return
	}
	b.sendText(msg.Chat.ID, "Оплата успешно получена! Баланс пополнен.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
		if err != nil {
			b.log.Error("ensure user", "err", err)
			return
		}
		name := user.Username
		if name == "" && msg.From != nil {
			name = msg.From.FirstName
		}
		text := fmt.Sprintf(
			"Привет, %s!\n\nЭто бот для диалогов с нейросетями: текст и изображения.\n\nКоманды:\n/menu — главное меню\n/balance — баланс\n/history — история операций\n/buy — пополнить баланс",
			name,
		)
		b.sendText(msg.Chat.ID, text)
		b.sendMenu(msg.Chat.ID)
	case "menu":
		if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
			b.log.Error("ensure user", "err", err)
			return
		}
		b.state.Reset(msg.Chat.ID)
		b.sendMenu(msg.Chat.ID)
	case "balance":
		b.handleBalanceCommand(ctx, msg)
	case "history":
		b.handleHistoryCommand(ctx, msg)
	case "buy":
		user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
		if err != nil {
			b.log.Error("ensure user buy", "err", err)
			return
		}
		if err := b.payments.SendInvoice(ctx, b.api, user, msg.Chat.ID); err != nil {
			b.log.Error("send invoice", "err", err)
			b.sendText(msg.Chat.ID, "Не удалось отправить счет. Попробуйте позже.")
		}
	default:
		b.sendText(msg.Chat.ID, "Неизвестная команда. Используйте /menu.")
	}
}

func (b *Bot) handleBalanceCommand(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		b.log.Error("ensure user balance", "err", err)
		return
	}
	balance, err := b.balance.Balance(ctx, user.ID)
	if err != nil {
		b.log.Error("get balance", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось получить баланс, попробуйте позже.")
		return
	}
	text := fmt.Sprintf("Баланс: %.2f", float64(balance)/100)
	if sub, err := b.subscriptions.ActiveForUser(ctx, user.ID); err == nil && sub != nil {
		text += fmt.Sprintf("\nПодписка: %s до %s", sub.Plan, sub.EndDate.Format("02.01.2006"))
	}
	b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHistoryCommand(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.ensureUser(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		b.log.Error("ensure user history", "err", err)
		return
	}
	transactions, err := b.balance.History(ctx, user.ID)
	if err != nil {
		b.log.Error("transaction history", "err", err)
		b.sendText(msg.Chat.ID, "Не удалось получить историю, попробуйте позже.")
		return
	}
	if len(transactions) == 0 {
		b.sendText(msg.Chat.ID, "Операций пока нет.")
		return
	}
	var sb strings.Builder
	sb.WriteString("История операций:\n")
	for _, t := range transactions {
		sign := "+"
		if t.Amount < 0 {
			sign = ""
		}
		fmt.Fprintf(&sb, "%s %s%.2f (%s)\n", t.CreatedAt.Format("02.01.2006 15:04"), sign, float64(t.Amount)/100, t.Kind)
	}
	b.sendText(msg.Chat.ID, sb.String())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// inline-mode callbacks carry no message and no chat to reply into
	if cb.Message == nil || cb.Message.Chat == nil {
		b.answerCallback(cb.ID, "")
		return
	}
	action, err := ParseAction(cb.Data)
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный выбор")
		return
	}

	user, err := b.ensureUser(ctx, cb.From, cb.Message.Chat.ID)
	if err != nil {
		b.log.Error("ensure user callback", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}

	chatID := cb.Message.Chat.ID
	session := b.state.Get(chatID)

	switch action.Kind {
	case ActionMainMenu:
		b.state.Reset(chatID)
		b.answerCallback(cb.ID, "")
		b.sendMenu(chatID)

	case ActionShowBuy:
		b.answerCallback(cb.ID, "")
		b.sendKeyboard(chatID, "Пополнение баланса и подписки:", buyKeyboard())

	case ActionTopUp:
		b.answerCallback(cb.ID, "")
		if err := b.payments.SendInvoice(ctx, b.api, user, chatID); err != nil {
			b.log.Error("send invoice", "err", err)
			b.sendText(chatID, "Не удалось отправить счет. Попробуйте позже.")
		}

	case ActionSubscribe:
		b.handleSubscribe(ctx, cb, user, action.Arg)

	case ActionShowDialogs:
		dialogs, err := b.dialogs.ListForUser(ctx, user.ID)
		if err != nil {
			b.log.Error("list dialogs", "err", err)
			b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
			return
		}
		b.answerCallback(cb.ID, "")
		b.sendKeyboard(chatID, "Ваши диалоги:", dialogsKeyboard(dialogs))

	case ActionNewDialog:
		session.State = StateChoosingModel
		b.state.Set(chatID, session)
		b.answerCallback(cb.ID, "")
		b.sendKeyboard(chatID, "Выберите модель:", modelKeyboard(ActionChooseModel))

	case ActionChooseModel:
		model := models.ModelType(action.Arg)
		if !models.KnownModel(model) {
			b.answerCallback(cb.ID, "Неизвестная модель")
			return
		}
		session.State = StateChoosingRole
		session.SelectedModel = model
		b.state.Set(chatID, session)
		b.answerCallback(cb.ID, "Модель выбрана")
		b.sendKeyboard(chatID, "Выберите роль ассистента:", roleKeyboard(ActionChooseRole))

	case ActionChooseRole:
		b.handleCreateDialog(ctx, cb, user, session, action.Arg)

	case ActionOpenDialog:
		b.handleOpenDialog(ctx, cb, user, session, action)

	case ActionModeText:
		b.handleModeSwitch(cb, session, ModeText, "Отправьте сообщение.")

	case ActionModeImage:
		b.handleModeSwitch(cb, session, ModeImage, "Отправьте описание изображения.")

	case ActionSettings:
		if session.CurrentDialogID == 0 {
			b.answerCallback(cb.ID, "Сначала выберите диалог")
			return
		}
		b.answerCallback(cb.ID, "")
		b.sendKeyboard(chatID, "Настройки диалога — выберите модель или роль:", settingsKeyboard())

	case ActionSetModel:
		b.handleSetModel(ctx, cb, session, action.Arg)

	case ActionSetRole:
		b.handleSetRole(ctx, cb, session, action.Arg)

	case ActionSetLimit:
		b.handleSetLimit(ctx, cb, session, action)

	case ActionResetContext:
		if session.CurrentDialogID == 0 {
			b.answerCallback(cb.ID, "Сначала выберите диалог")
			return
		}
		session.IgnoreHistory = true
		b.state.Set(chatID, session)
		b.answerCallback(cb.ID, "Контекст сброшен")
		b.sendText(chatID, "Следующее сообщение будет отправлено без истории диалога.")
	}
}

func (b *Bot) handleSubscribe(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User, planName string) {
	chatID := cb.Message.Chat.ID
	plan, ok := service.PlanByName(planName)
	if !ok {
		b.answerCallback(cb.ID, "Неизвестный план")
		return
	}
	if _, err := b.balance.Withdraw(ctx, user.ID, plan.PriceMinorUnits); err != nil {
		if errors.Is(err, service.ErrInsufficientFunds) {
			b.answerCallback(cb.ID, "Недостаточно средств")
			b.sendText(chatID, "Недостаточно средств на балансе. Используйте /buy для пополнения.")
			return
		}
		b.log.Error("withdraw for subscription", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	sub, err := b.subscriptions.Subscribe(ctx, user.ID, plan.Name)
	if err != nil {
		b.log.Error("subscribe", "err", err)
		// the price is already withdrawn, give it back
		if _, depErr := b.balance.Deposit(ctx, user.ID, plan.PriceMinorUnits); depErr != nil {
			b.log.Error("refund subscription price", "err", depErr)
		}
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	b.answerCallback(cb.ID, "Подписка оформлена")
	b.sendText(chatID, fmt.Sprintf("Подписка %s активна до %s.", sub.Plan, sub.EndDate.Format("02.01.2006")))
}

func (b *Bot) handleCreateDialog(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User, session *Session, roleArg string) {
	chatID := cb.Message.Chat.ID
	role := models.RoleType(roleArg)
	if !models.KnownRole(role) {
		b.answerCallback(cb.ID, "Неизвестная роль")
		return
	}
	if session.SelectedModel == "" {
		b.answerCallback(cb.ID, "Сначала выберите модель")
		return
	}
	dialogID, err := b.dialogs.Create(ctx, user.ID, session.SelectedModel, role)
	if err != nil {
		b.log.Error("create dialog", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	session.State = StateIdle
	session.SelectedRole = role
	session.CurrentDialogID = dialogID
	b.state.Set(chatID, session)
	b.answerCallback(cb.ID, "Диалог создан")
	b.sendKeyboard(chatID, fmt.Sprintf("Диалог #%d создан. Что дальше?", dialogID), dialogKeyboard())
}

func (b *Bot) handleOpenDialog(ctx context.Context, cb *tgbotapi.CallbackQuery, user *models.User, session *Session, action Action) {
	chatID := cb.Message.Chat.ID
	dialogID, err := action.DialogID()
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный выбор")
		return
	}
	dialog, err := b.dialogs.Get(ctx, dialogID)
	if err != nil {
		if errors.Is(err, service.ErrDialogNotFound) {
			b.answerCallback(cb.ID, "Диалог не найден")
			return
		}
		b.log.Error("get dialog", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	if dialog.UserID != user.ID {
		b.answerCallback(cb.ID, "Диалог не найден")
		return
	}
	session.State = StateIdle
	session.CurrentDialogID = dialog.ID
	session.IgnoreHistory = false
	b.state.Set(chatID, session)
	b.answerCallback(cb.ID, "")
	b.sendKeyboard(chatID, fmt.Sprintf("Диалог #%d · %s · %s", dialog.ID, dialog.ModelType, dialog.RoleType), dialogKeyboard())
}

func (b *Bot) handleModeSwitch(cb *tgbotapi.CallbackQuery, session *Session, mode DialogMode, prompt string) {
	chatID := cb.Message.Chat.ID
	if session.CurrentDialogID == 0 {
		b.answerCallback(cb.ID, "Сначала выберите диалог")
		return
	}
	session.State = StateAwaitingPrompt
	session.Mode = mode
	b.state.Set(chatID, session)
	b.answerCallback(cb.ID, "")
	b.sendText(chatID, prompt)
}

func (b *Bot) handleSetModel(ctx context.Context, cb *tgbotapi.CallbackQuery, session *Session, arg string) {
	if session.CurrentDialogID == 0 {
		b.answerCallback(cb.ID, "Сначала выберите диалог")
		return
	}
	model := models.ModelType(arg)
	if !models.KnownModel(model) {
		b.answerCallback(cb.ID, "Неизвестная модель")
		return
	}
	if err := b.dialogs.Update(ctx, session.CurrentDialogID, service.DialogModelPatch(model)); err != nil {
		b.log.Error("update dialog model", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	b.answerCallback(cb.ID, "Модель обновлена")
	b.sendKeyboard(cb.Message.Chat.ID, fmt.Sprintf("Модель диалога: %s", model), dialogKeyboard())
}

func (b *Bot) handleSetRole(ctx context.Context, cb *tgbotapi.CallbackQuery, session *Session, arg string) {
	if session.CurrentDialogID == 0 {
		b.answerCallback(cb.ID, "Сначала выберите диалог")
		return
	}
	role := models.RoleType(arg)
	if !models.KnownRole(role) {
		b.answerCallback(cb.ID, "Неизвестная роль")
		return
	}
	if err := b.dialogs.Update(ctx, session.CurrentDialogID, service.DialogRolePatch(role)); err != nil {
		b.log.Error("update dialog role", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	b.answerCallback(cb.ID, "Роль обновлена")
	b.sendKeyboard(cb.Message.Chat.ID, fmt.Sprintf("Роль диалога: %s", role), dialogKeyboard())
}

func (b *Bot) handleSetLimit(ctx context.Context, cb *tgbotapi.CallbackQuery, session *Session, action Action) {
	if session.CurrentDialogID == 0 {
		b.answerCallback(cb.ID, "Сначала выберите диалог")
		return
	}
	limit, err := action.Limit()
	if err != nil {
		b.answerCallback(cb.ID, "Неизвестный выбор")
		return
	}
	if err := b.dialogs.Update(ctx, session.CurrentDialogID, service.DialogLimitPatch(limit)); err != nil {
		b.log.Error("update dialog history limit", "err", err)
		b.answerCallback(cb.ID, "Ошибка, попробуйте позже")
		return
	}
	b.answerCallback(cb.ID, "История обновлена")
	b.sendKeyboard(cb.Message.Chat.ID, fmt.Sprintf("Хранимая история: %d сообщений", limit), dialogKeyboard())
}

func (b *Bot) handlePrompt(ctx context.Context, msg *tgbotapi.Message, session *Session) {
	chatID := msg.Chat.ID
	if session.CurrentDialogID == 0 {
		b.sendText(chatID, "Сначала выберите диалог через /menu.")
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		b.sendText(chatID, "Сообщение не может быть пустым.")
		return
	}
	user, err := b.ensureUser(ctx, msg.From, chatID)
	if err != nil {
		b.log.Error("ensure user prompt", "err", err)
		return
	}

	switch session.Mode {
	case ModeImage:
		b.sendText(chatID, "Генерация изображения началась, это может занять до минуты.")
		url, err := b.generation.Image(ctx, user.ID, session.CurrentDialogID, msg.Text)
		if err != nil {
			b.reportGenerationError(chatID, err)
			return
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
		b.send(photo)
	default:
		reply, err := b.generation.Text(ctx, user.ID, session.CurrentDialogID, msg.Text, session.IgnoreHistory)
		if err != nil {
			b.reportGenerationError(chatID, err)
			return
		}
		b.sendText(chatID, reply)
	}

	// context reset is one-shot
	if session.IgnoreHistory {
		session.IgnoreHistory = false
		b.state.Set(chatID, session)
	}
}

func (b *Bot) reportGenerationError(chatID int64, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		b.sendText(chatID, "Недостаточно средств. Используйте /buy для пополнения баланса или оформите подписку.")
	case errors.Is(err, service.ErrDialogNotFound):
		b.sendText(chatID, "Диалог не найден. Откройте /menu и выберите диалог.")
	default:
		b.log.Error("generation failed", "err", err)
		b.sendText(chatID, "Не удалось выполнить запрос, попробуйте позже.")
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) (*models.User, error) {
	username := ""
	telegramID := chatID
	if from != nil {
		username = from.UserName
		telegramID = from.ID
	}
	user, err := b.users.Register(ctx, username, telegramID)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, service.ErrDuplicateUser) {
		return b.users.FindByTelegramID(ctx, telegramID)
	}
	return nil, err
}

func (b *Bot) sendMenu(chatID int64) {
	b.sendKeyboard(chatID, "Главное меню:", mainMenuKeyboard())
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if b.api == nil { // For testing
		return
	}
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send message", "err", err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if b.api == nil { // For testing
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}
