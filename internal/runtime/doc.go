// Package runtime держит живые сессии приложений.
//
// Сессия — это загруженный DSL приложения, Binder над ним, менеджер
// источников данных и планировщик обновлений. Registry открывает сессии
// по ID приложения, пересылает события "update-data" в Publisher и
// принимает внешние изменения источников из очереди datasources.changed.
package runtime
