package assistant

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/docfinder/internal/domain/catalog"
	"github.com/kailas-cloud/docfinder/internal/domain/location"
)

const classifyPrompt = `Ты - помощник по поиску врачей в медицинских учреждениях города %[1]s.

Доступные специальности:
%[2]s

Твои возможности:
1. Понимать запросы о специальностях врачей
2. Распознавать адреса, районы и улицы города %[1]s
3. Учитывать предпочтения пользователя (близко к дому, хорошие отзывы)

Примеры запросов:
- "Нужен окулист рядом с улицей Ленина"
- "Ищу хорошего стоматолога в центре"
- "Детский врач недалеко от дома"

Твоя задача:
1. Определить специальность ТОЛЬКО из списка выше и назвать её точно так, как она написана в списке
2. Если специальность не понятна, попроси уточнить и не называй никакую специальность
3. Не давай медицинских советов и не ставь диагнозов

Формат ответа:
- Подтверди, что понял запрос
- Укажи найденную специальность
- Если есть адрес, упомяни его

Отвечай кратко и по делу.`

const filterPrompt = `Ты - помощник по фильтрации адресов в городе %[1]s.

Список больниц с адресами:
%[2]s

Твоя задача:
1. Определить ВСЕ больницы в городе %[1]s, адреса которых соответствуют запросу пользователя
2. Вернуть ТОЛЬКО их номера из списка выше через запятую

КРИТИЧЕСКИ ВАЖНО:
- Рассматривай ТОЛЬКО адреса, где указан город %[1]s
- ИГНОРИРУЙ адреса в других городах, даже если улица совпадает
- Не пиши названия больниц, только номера

Центр города: улицы %[3]s.

Пример ответа: 1,3,5,12
Если ни одна больница не подходит, ответь словом "нет".`

const recommendPrompt = `Ты - помощник по выбору врача в городе %[1]s.

Доступные врачи:
%[2]s%[3]s

Твоя задача:
1. Учесть предпочтения пользователя (местоположение, качество)
2. Порекомендовать наиболее подходящего врача из списка
3. Кратко объяснить выбор и упомянуть адрес

Не давай медицинских советов. Отвечай кратко и дружелюбно.`

var centreStreets = []string{"Ленина", "Кирова", "Театральная", "Октябрьская", "Баумана", "Суворова"}

func buildClassifyPrompt(city string, specialties []catalog.Specialty) string {
	var b strings.Builder
	for _, s := range specialties {
		fmt.Fprintf(&b, "- %s\n", s.Name)
	}
	return fmt.Sprintf(classifyPrompt, city, strings.TrimRight(b.String(), "\n"))
}

// buildFilterPrompt enumerates hospitals 1-based; answers are indices into this exact list.
func buildFilterPrompt(city string, hospitals []catalog.Hospital) string {
	var b strings.Builder
	for i, h := range hospitals {
		addr := h.Address
		if !h.HasAddress() {
			addr = "адрес не указан"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, h.Name, addr)
	}
	return fmt.Sprintf(filterPrompt, city, strings.TrimRight(b.String(), "\n"), strings.Join(centreStreets, ", "))
}

func filterQuestion(text string) string {
	return fmt.Sprintf("Какие больницы подходят под запрос: %s?", text)
}

func buildRecommendPrompt(city string, doctors []catalog.Doctor, sig *location.Signal) string {
	blocks := make([]string, 0, len(doctors))
	for i, d := range doctors {
		addr := d.Address
		if !d.HasAddress() {
			addr = "не указан"
		}
		blocks = append(blocks, fmt.Sprintf("Врач %d: %s\nБольница: %s\nАдрес: %s\nСпециальность: %s",
			i+1, d.Name, orDash(d.HospitalName), addr, orDash(d.SpecialtyName)))
	}
	return fmt.Sprintf(recommendPrompt, city, strings.Join(blocks, "\n\n"), locationContext(sig))
}

func locationContext(sig *location.Signal) string {
	if sig == nil || !sig.HasLocation {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nПредпочтения пользователя по местоположению:\n")
	if sig.District != "" {
		fmt.Fprintf(&b, "- Район: %s\n", sig.District)
	}
	if sig.NearCenter {
		b.WriteString("- Предпочитает центр города\n")
	}
	if sig.Prefers(location.PreferNearby) {
		b.WriteString("- Важна близость к дому\n")
	}
	if sig.Prefers(location.PreferQuality) {
		b.WriteString("- Важно качество и репутация\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "не указана"
	}
	return s
}
