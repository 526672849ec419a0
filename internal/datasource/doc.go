// Package datasource содержит источники данных приложения и их менеджер.
//
// Источник хранит именованное значение, на которое ссылаются привязки
// узлов: base — локальное состояние с значениями по умолчанию из fields,
// http — данные, загружаемые запросом к внешнему API.
//
// Manager владеет источниками одного приложения. Каждое изменение данных
// порождает событие "change" (ChangeEvent), которое обрабатывается
// подписчиками синхронно, строго по одному, в порядке поступления.
// Результаты пересчёта узлов публикуются через "update-data" (UpdateEvent).
package datasource
