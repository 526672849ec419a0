// Package binding связывает дерево страниц с источниками данных.
//
// Binder строит индекс зависимостей из dataSourceDeps и dataSourceCondDeps,
// один раз выполняет начальный пересчёт узлов и затем на каждое изменение
// источника пересчитывает только зависящие от него узлы:
//
//   - условия видимости вычисляются на копиях узлов, каноничное дерево
//     не изменяется, копии уходят подписчикам в событии "update-data";
//   - привязанные свойства пересчитываются на месте, узлы заменяются
//     в дереве и отправляются вторым событием "update-data".
//
// Сначала отправляется событие условий, затем событие значений.
package binding
