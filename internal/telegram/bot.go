// internal/telegram/bot.go
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"tenderbot/internal/config"
	"tenderbot/internal/damia"
	"tenderbot/internal/download"
	"tenderbot/internal/linkparse"
	"tenderbot/internal/storage"
	"tenderbot/internal/tenderguru"
	"tenderbot/internal/types"
)

const (
	helpText = "Доступные команды:\n" +
		"/start — начать\n" +
		"/help — справка\n" +
		"/analyze — анализ тендера по ссылке\n" +
		"/check <ИНН> — проверка поставщика (РНП, СРО, ЕГРЮЛ)\n" +
		"/stats — статистика запросов"

	analyzeText = "Отправь ссылку на тендер с любой площадки:\n" +
		"✅ zakupki.gov.ru\n" +
		"✅ sberbank-ast.ru\n" +
		"✅ b2b-center.ru\n" +
		"✅ roseltorg.ru\n" +
		"✅ torgi.gov.ru\n" +
		"✅ zakazrf.ru\n" +
		"✅ и др."
)

type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        *config.Config
	guru       *tenderguru.Client
	damia      *damia.Client
	downloader *download.Downloader
	history    *storage.MongoStorage // nil when history is disabled
	cache      *storage.RedisCache   // nil when the cache is disabled

	// In-process directory copy for runs without Redis.
	platformsMu sync.Mutex
	platforms   []types.Platform
}

func NewBot(cfg *config.Config, guru *tenderguru.Client, damiaClient *damia.Client,
	downloader *download.Downloader, history *storage.MongoStorage, cache *storage.RedisCache) (*Bot, error) {

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSHandshakeTimeout: 10 * time.Second,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			ForceAttemptHTTP2:   true,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	logrus.Infof(color.GreenString("Started bot @%s"), api.Self.UserName)

	return &Bot{
		api:        api,
		cfg:        cfg,
		guru:       guru,
		damia:      damiaClient,
		downloader: downloader,
		history:    history,
		cache:      cache,
	}, nil
}

// Run consumes updates until the update channel closes.
func (b *Bot) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		} else if update.CallbackQuery != nil {
			b.handleCallback(update.CallbackQuery)
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	logrus.Infof("Received message from user %d in chat %d: %s", msg.From.ID, chatID, text)

	if !b.chatAllowed(chatID) {
		logrus.Infof("Ignoring message from chat %d: not in allowed chats", chatID)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.sendText(chatID, "Привет! Я TenderBot. Введите /help для справки.")
		case "help":
			b.sendText(chatID, helpText)
		case "analyze":
			b.sendAnalyzePrompt(chatID)
		case "check":
			b.handleCheck(msg)
		case "stats":
			b.handleStats(chatID)
		default:
			b.sendText(chatID, "Неизвестная команда. Введите /help для справки.")
		}
		return
	}

	if text != "" {
		b.handleTenderLink(msg)
	}
}

func (b *Bot) chatAllowed(chatID int64) bool {
	if len(b.cfg.Telegram.AllowedChats) == 0 {
		return true
	}
	for _, id := range b.cfg.Telegram.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func (b *Bot) sendAnalyzePrompt(chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Отправить ссылку на тендер", "wait_for_link"),
		),
	)
	msg := tgbotapi.NewMessage(chatID, analyzeText)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		logrus.Errorf("Failed to send analyze prompt to chat %d: %v", chatID, err)
	}
}

// handleTenderLink resolves a tender URL to its registry number and replies
// with the tender card.
func (b *Bot) handleTenderLink(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	url := strings.TrimSpace(msg.Text)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	regNumber, platform := linkparse.Extract(url, b.platformList(ctx))
	if regNumber == "" {
		b.sendText(chatID, "Тендер не найден. Проверьте ссылку.")
		return
	}
	logrus.Infof("Extracted reg number %s (platform %s) from url %s", regNumber, platform, url)

	info, err := b.guru.TenderByNumber(ctx, regNumber)
	b.recordQuery(msg, "TENDERGURU", "tender", regNumber, err)
	if err != nil {
		logrus.Errorf("Failed to get tender %s: %v", regNumber, err)
		b.sendText(chatID, "Тендер не найден. Проверьте ссылку.")
		return
	}

	text := fmt.Sprintf("📄 Тендер №%s\n\n"+
		"🏛️ Заказчик: %s\n"+
		"📝 Предмет: %s\n"+
		"💰 НМЦК: %s\n"+
		"📅 Дедлайн: %s\n"+
		"📍 Место поставки: %s\n",
		html.EscapeString(info.RegNumber),
		html.EscapeString(info.Customer),
		html.EscapeString(info.Subject),
		html.EscapeString(info.Price),
		html.EscapeString(info.Deadline),
		html.EscapeString(info.Region))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧠 Анализ документации", "analyze_docs_"+regNumber),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📥 Скачать документацию", "download_docs_"+regNumber),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Похожие закупки", "similar_tenders"),
		),
	)
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = "HTML"
	reply.ReplyMarkup = keyboard
	if _, err := b.api.Send(reply); err != nil {
		logrus.Errorf("Failed to send tender card to chat %d: %v", chatID, err)
	}
}

// handleCheck runs the Damia RNP check for an INN and offers the other
// registry lookups via inline buttons.
func (b *Bot) handleCheck(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	inn := strings.TrimSpace(msg.CommandArguments())
	if inn == "" {
		b.sendText(chatID, "Использование: /check <ИНН>")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	body, err := b.damia.RNP(ctx, inn)
	b.recordQuery(msg, "DAMIA", "rnp", inn, err)
	if err != nil {
		logrus.Errorf("RNP check failed for INN %s: %v", inn, err)
		b.sendText(chatID, "Не удалось выполнить проверку. Попробуйте позже.")
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Членство в СРО", "sro_"+inn),
			tgbotapi.NewInlineKeyboardButtonData("Карточка ЕГРЮЛ", "egrul_"+inn),
		),
	)
	reply := tgbotapi.NewMessage(chatID, rnpSummary(inn, body))
	reply.ReplyMarkup = keyboard
	if _, err := b.api.Send(reply); err != nil {
		logrus.Errorf("Failed to send RNP result to chat %d: %v", chatID, err)
	}
}

// rnpSummary condenses the RNP passthrough body into a verdict line.
func rnpSummary(inn string, body json.RawMessage) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		if entry, ok := payload[inn].(map[string]interface{}); ok {
			if list, ok := entry["rnp"].([]interface{}); ok {
				if len(list) == 0 {
					return fmt.Sprintf("✅ ИНН %s: записей в РНП не найдено.", inn)
				}
				return fmt.Sprintf("⚠️ ИНН %s: найдено записей в РНП: %d.", inn, len(list))
			}
		}
	}
	return fmt.Sprintf("ИНН %s: ответ реестра получен, записей РНП не обнаружено.", inn)
}

func (b *Bot) handleStats(chatID int64) {
	if b.history == nil {
		b.sendText(chatID, "История запросов отключена.")
		return
	}
	counts, err := b.history.CountByAPI()
	if err != nil {
		logrus.Errorf("Failed to load query stats: %v", err)
		b.sendText(chatID, "Не удалось получить статистику.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Статистика запросов:\nTenderGuru: %d\nDamia: %d",
		counts["TENDERGURU"], counts["DAMIA"]))
}

func (b *Bot) handleCallback(q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		logrus.Errorf("Failed to answer callback %s: %v", q.ID, err)
	}
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID
	data := q.Data

	switch {
	case strings.HasPrefix(data, "analyze_docs_"):
		b.editText(chatID, messageID, "🧠 Анализ документации (будет реализовано)")
	case strings.HasPrefix(data, "download_docs_"):
		regNumber := strings.TrimPrefix(data, "download_docs_")
		b.editText(chatID, messageID, "⏳ Скачиваем документацию...")
		go b.deliverDocuments(q, regNumber)
	case strings.HasPrefix(data, "sro_"):
		go b.deliverRegistryCard(q, "sro", strings.TrimPrefix(data, "sro_"))
	case strings.HasPrefix(data, "egrul_"):
		go b.deliverRegistryCard(q, "egrul", strings.TrimPrefix(data, "egrul_"))
	case data == "similar_tenders":
		b.editText(chatID, messageID, "📊 Похожие закупки (будет реализовано позже)")
	case data == "wait_for_link":
		b.editText(chatID, messageID, "Отправьте ссылку на тендер сообщением.")
	}
}

// deliverDocuments downloads the tender attachments and sends the archive.
func (b *Bot) deliverDocuments(q *tgbotapi.CallbackQuery, regNumber string) {
	chatID := q.Message.Chat.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	docs, err := b.guru.Documents(ctx, regNumber)
	b.recordCallbackQuery(q, "TENDERGURU", "documents", regNumber, err)
	if err != nil || len(docs) == 0 {
		logrus.Warnf("No documents for tender %s: %v", regNumber, err)
		b.sendText(chatID, "Документация не найдена или не удалось скачать файлы.")
		return
	}

	res, err := b.downloader.FetchArchive(ctx, regNumber, docs)
	if err != nil {
		logrus.Errorf("Failed to build archive for tender %s: %v", regNumber, err)
		b.sendText(chatID, "Документация не найдена или не удалось скачать файлы.")
		return
	}
	defer os.Remove(res.ArchivePath)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(res.ArchivePath))
	doc.Caption = fmt.Sprintf("Документы тендера №%s (%d из %d)", regNumber, res.Downloaded, res.Total)
	if _, err := b.api.Send(doc); err != nil {
		logrus.Errorf("Failed to send archive to chat %d: %v", chatID, err)
		b.sendText(chatID, "Не удалось отправить архив с документами.")
		return
	}
	logrus.Infof("Sent archive %s to chat %d", res.ArchivePath, chatID)
}

// deliverRegistryCard sends a Damia registry lookup as pretty-printed JSON.
func (b *Bot) deliverRegistryCard(q *tgbotapi.CallbackQuery, kind, inn string) {
	chatID := q.Message.Chat.ID

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var body json.RawMessage
	var err error
	var title string
	switch kind {
	case "sro":
		title = "Членство в СРО"
		body, err = b.damia.SRO(ctx, inn)
	case "egrul":
		title = "Карточка ЕГРЮЛ"
		body, err = b.damia.Egrul(ctx, inn)
	}
	b.recordCallbackQuery(q, "DAMIA", kind, inn, err)
	if err != nil {
		logrus.Errorf("%s lookup failed for INN %s: %v", kind, inn, err)
		b.sendText(chatID, "Не удалось выполнить проверку. Попробуйте позже.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s (ИНН %s):\n<pre>%s</pre>",
		title, inn, html.EscapeString(prettyJSON(body))))
	msg.ParseMode = "HTML"
	if _, err := b.api.Send(msg); err != nil {
		logrus.Errorf("Failed to send %s card to chat %d: %v", kind, chatID, err)
	}
}

// prettyJSON re-indents a passthrough body for display, truncated to fit a
// Telegram message.
func prettyJSON(body json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	const maxLen = 3500
	if len(data) > maxLen {
		return string(data[:maxLen]) + "\n…"
	}
	return string(data)
}

// platformList returns the platform directory, preferring Redis, then the
// in-process copy, then the API.
func (b *Bot) platformList(ctx context.Context) []types.Platform {
	if b.cache != nil {
		platforms, err := b.cache.GetPlatforms()
		if err == nil {
			return platforms
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			logrus.Warnf("Platform cache read failed: %v", err)
		}
	}

	b.platformsMu.Lock()
	defer b.platformsMu.Unlock()
	if b.platforms != nil {
		return b.platforms
	}

	platforms, err := b.guru.Platforms(ctx)
	if err != nil {
		logrus.Errorf("Failed to load platform directory: %v", err)
		return nil
	}
	b.platforms = platforms
	if b.cache != nil {
		if err := b.cache.SetPlatforms(platforms); err != nil {
			logrus.Warnf("Platform cache write failed: %v", err)
		}
	}
	return platforms
}

func (b *Bot) recordQuery(msg *tgbotapi.Message, api, operation, query string, callErr error) {
	if b.history == nil {
		return
	}
	status := 200
	if callErr != nil {
		status = 0
	}
	rec := storage.QueryRecord{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		UserName:  msg.From.UserName,
		API:       api,
		Operation: operation,
		Query:     query,
		Status:    status,
	}
	if err := b.history.SaveQuery(rec); err != nil {
		logrus.Warnf("Failed to save query history: %v", err)
	}
}

func (b *Bot) recordCallbackQuery(q *tgbotapi.CallbackQuery, api, operation, query string, callErr error) {
	if b.history == nil {
		return
	}
	status := 200
	if callErr != nil {
		status = 0
	}
	rec := storage.QueryRecord{
		UserID:    q.From.ID,
		ChatID:    q.Message.Chat.ID,
		UserName:  q.From.UserName,
		API:       api,
		Operation: operation,
		Query:     query,
		Status:    status,
	}
	if err := b.history.SaveQuery(rec); err != nil {
		logrus.Warnf("Failed to save query history: %v", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logrus.Errorf("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(edit); err != nil {
		logrus.Errorf("Failed to edit message %d in chat %d: %v", messageID, chatID, err)
	}
}
