package search

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/docfinder/internal/domain/action"
	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
	"github.com/kailas-cloud/docfinder/internal/domain/reply"
)

const (
	msgWelcome = "👋 Добро пожаловать в GdeDoctor!\n\n" +
		"Я помогу вам найти врача в медицинских учреждениях города %s.\n\n" +
		"Что вы хотите сделать?"

	msgHelp = "📋 Справка по использованию бота\n\n" +
		"🔍 Поиск врача:\n" +
		"1. Выберите специальность врача\n" +
		"2. Выберите медицинское учреждение\n" +
		"3. Выберите врача из списка\n" +
		"4. Посмотрите информацию и местоположение\n\n" +
		"🤖 ИИ Ассистент:\n" +
		"• Опишите своими словами, какой врач нужен и где\n\n" +
		"📝 Отзывы:\n" +
		"• Читайте отзывы других пациентов\n" +
		"• Оставляйте свои отзывы о врачах\n\n" +
		"Команды: /start, /help, /cancel"

	msgCancelled       = "❌ Действие отменено.\n\nЧто вы хотите сделать?"
	msgNothingToCancel = "Нечего отменять."

	msgAIIntro = "🤖 ИИ Ассистент активирован!\n\n" +
		"Я помогу найти врача в городе %s. Напишите:\n" +
		"• Какой врач нужен (специальность)\n" +
		"• Где вы хотите его найти (адрес, район)\n\n" +
		"Примеры запросов:\n" +
		"• \"Нужен стоматолог в центре\"\n" +
		"• \"Ищу детского врача на улице Ленина\"\n" +
		"• \"Окулист в Московском районе\"\n\n" +
		"⚠️ Я не могу давать медицинские советы или консультации.\n" +
		"Для возврата в меню нажмите /start"
	msgAIUnavailable = "🤖 ИИ Ассистент сейчас недоступен.\n\nВоспользуйтесь обычным поиском по специальностям."
	msgAIError       = "Извините, произошла ошибка. Попробуйте использовать обычный поиск через кнопки."
	msgEmptyQuery    = "Пожалуйста, напишите ваш запрос текстом."

	msgNeedSpecialty = "Я вижу, что вы указали адрес, но не понял, какого врача вы ищете. 🤔\n\n" +
		"Пожалуйста, уточните специальность, например:\n" +
		"• \"Нужен стоматолог на улице Ленина\"\n" +
		"• \"Ищу терапевта в центре\""
	msgOutOfDomain = "Я помогаю только с поиском врачей 😅\n\n" +
		"Напишите:\n" +
		"• Какой врач нужен (терапевт, стоматолог, окулист)\n" +
		"• Где искать (можно указать район или улицу)\n\n" +
		"Или нажмите /start, чтобы вернуться в меню."
	msgNeedAddress = "Не могу определить адрес или район. 🤔\n\n" +
		"Попробуйте указать:\n" +
		"• Улицу (например: \"улица Ленина\")\n" +
		"• Район (например: \"центр города\")\n" +
		"• Ориентир (например: \"рядом с площадью\")"
	msgNoExactMatch      = "⚠️ Не нашел больниц точно по указанному адресу.\nПоказываю все доступные варианты:"
	msgNoHospitalsForAI  = "К сожалению, не нашел больниц с врачами специальности \"%s\".\n\nПопробуйте другой запрос или используйте обычный поиск."
	msgRefineNotFound    = "😔 К сожалению, не нашел больниц с врачами специальности \"%s\" по указанному адресу.\n\n" +
		"Попробуйте:\n• Указать другой адрес\n• Выбрать из списка выше\n• Начать новый поиск /start"
	msgRecommendFallback = "Извините, не могу дать рекомендацию. Выберите врача из списка."
	msgPickFromList      = "Пожалуйста, выберите вариант из списка, используя кнопки.\n\nИли отправьте /start для нового поиска."

	msgSearchHeader = "🔍 Поиск врача\n\n"
	msgStep1        = "Шаг 1 из 3: Выберите специальность врача"
	msgStep2        = "Шаг 2 из 3: Выберите медицинское учреждение"
	msgStep3        = "Шаг 3 из 3: Выберите врача"

	msgLoadError          = "Ошибка при загрузке данных. Попробуйте начать поиск заново."
	msgNoSpecialties      = "Специальности не найдены"
	msgSpecialtyNotFound  = "Специальность не найдена. Выберите специальность из списка."
	msgNoHospitals        = "Для этой специальности нет больниц"
	msgNoDoctors          = "В этой больнице нет врачей данной специальности"
	msgDoctorNotFound     = "Врач не найден"
	msgContextLost        = "Данные поиска потеряны. Начнем с выбора специальности."
	msgHospitalsNotFound  = "Больницы не найдены"

	msgReviewsHeader   = "📝 Отзывы\n\n"
	msgReviewsEmpty    = "📝 Отзывы\n\nПока нет отзывов об этом враче.\nБудьте первым!"
	msgWriteReview     = "✍️ Написать отзыв\n\nПожалуйста, напишите ваш отзыв о враче.\nМинимум %d символов, максимум %d символов."
	msgReviewTooShort  = "❌ Отзыв слишком короткий. Минимум %d символов.\nПопробуйте еще раз или нажмите «Отмена»."
	msgReviewTooLong   = "❌ Отзыв слишком длинный. Максимум %d символов.\nПопробуйте еще раз или нажмите «Отмена»."
	msgReviewSaved     = "✅ Отзыв успешно добавлен!\n\nСпасибо за ваш отзыв. Он поможет другим пользователям при выборе врача."
	msgReviewFailed    = "❌ Ошибка при сохранении отзыва. Попробуйте позже."
	msgReviewCancelled = "❌ Написание отзыва отменено."
)

// Button labels.
const (
	lblFindDoctor      = "🔍 Найти врача"
	lblAISearch        = "🤖 ИИ Ассистент"
	lblHelp            = "ℹ️ Помощь"
	lblHome            = "🏠 В начало"
	lblNewSearch       = "🔍 Новый поиск"
	lblCancel          = "❌ Отмена"
	lblBack            = "◀️ Назад"
	lblBackToList      = "◀️ Назад к списку"
	lblBackToDoctor    = "◀️ Назад к врачу"
	lblBackToHospitals = "◀️ К больницам"
	lblReviews         = "📝 Отзывы"
	lblWriteReview     = "✍️ Оставить отзыв"
	lblOnMap           = "🗺 Открыть на карте"
)

func homeOpt() reply.Option      { return reply.Opt(lblHome, action.Of(action.Start)) }
func newSearchOpt() reply.Option { return reply.Opt(lblNewSearch, action.Of(action.NewSearch)) }

func (s *Service) menu(text string) reply.Reply {
	opts := []reply.Option{reply.Opt(lblFindDoctor, action.Of(action.FindDoctor))}
	if s.oracle.Enabled() {
		opts = append(opts, reply.Opt(lblAISearch, action.Of(action.AISearch)))
	}
	opts = append(opts, reply.Opt(lblHelp, action.Of(action.Help)))
	return reply.WithOptions(text, opts...)
}

func (s *Service) welcome() reply.Reply {
	return s.menu(fmt.Sprintf(msgWelcome, s.cfg.City))
}

// failure is the reply for a broken primary action: a short message and a way to restart.
func failure(text string) reply.Reply {
	return reply.WithOptions(text, newSearchOpt(), homeOpt())
}

func specialtyOptions(items []catalog.Specialty) []reply.Option {
	opts := make([]reply.Option, len(items))
	for i, sp := range items {
		opts[i] = reply.Opt(sp.Name, action.WithID(action.Specialty, sp.ID))
	}
	return opts
}

func hospitalOptions(items []catalog.Hospital, kind action.Kind) []reply.Option {
	opts := make([]reply.Option, len(items))
	for i, h := range items {
		opts[i] = reply.Opt(h.Name, action.WithID(kind, h.ID))
	}
	return opts
}

func doctorOptions(items []catalog.Doctor) []reply.Option {
	opts := make([]reply.Option, len(items))
	for i, d := range items {
		opts[i] = reply.Opt(d.Name, action.WithID(action.Doctor, d.ID))
	}
	return opts
}

// enrichAnswer appends the location filter summary to the oracle's answer.
func enrichAnswer(answer string, sig location.Signal) string {
	if !sig.HasLocation {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n✅ Применяю фильтр по местоположению:")
	switch {
	case sig.District != "":
		b.WriteString("\n📍 Район: " + capitalize(sig.District))
	case sig.NearCenter:
		b.WriteString("\n📍 Центр города")
	default:
		b.WriteString("\n📍 По указанному адресу")
	}
	if sig.Prefers(location.PreferNearby) {
		b.WriteString("\n🚶 Приоритет: близость к дому")
	}
	if sig.Prefers(location.PreferQuality) {
		b.WriteString("\n⭐ Приоритет: качество и репутация")
	}
	b.WriteString("\n\nПоказываю только подходящие варианты! 🎯")
	return b.String()
}

func locationHint(sig *location.Signal) string {
	switch {
	case sig == nil || !sig.HasLocation:
		return ""
	case sig.District != "":
		return "\n📍 Район: " + capitalize(sig.District)
	case sig.NearCenter:
		return "\n📍 Центр города"
	default:
		return "\n📍 По указанному адресу"
	}
}

// hospitalListText is the header of an assisted hospital list.
func hospitalListText(title, specialty string, shown, original int, filtered bool, sig *location.Signal) string {
	if filtered {
		return fmt.Sprintf("%s\n\n🏥 Найдено больниц: %d (из %d)\nСпециальность: %s%s\n\nВыберите медицинское учреждение:",
			title, shown, original, specialty, locationHint(sig))
	}
	return fmt.Sprintf("🏥 Выберите медицинское учреждение:\n\nСпециальность: %s\nНайдено: %d больниц",
		specialty, shown)
}

func doctorCardText(d catalog.Doctor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👨‍⚕️ %s\n\n", d.Name)
	fmt.Fprintf(&b, "🏥 Больница: %s\n", d.HospitalName)
	fmt.Fprintf(&b, "🩺 Специальность: %s", d.SpecialtyName)
	if d.HasAddress() {
		fmt.Fprintf(&b, "\n📍 Адрес: %s", d.Address)
	}
	return b.String()
}

func reviewsText(reviews []catalog.Review) string {
	if len(reviews) == 0 {
		return msgReviewsEmpty
	}
	var b strings.Builder
	b.WriteString(msgReviewsHeader)
	for i := range reviews {
		r := &reviews[i]
		fmt.Fprintf(&b, "👤 %s (%s)\n%s\n\n", r.UserName(), r.CreatedAt().Format("2006-01-02"), r.Text())
	}
	return strings.TrimRight(b.String(), "\n")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
