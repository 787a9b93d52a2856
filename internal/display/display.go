// Package display реализует дисплей автомата: постоянное базовое сообщение
// и стек одноразовых сообщений поверх него.
package display

// Display хранит базовое сообщение и стек одноразовых сообщений.
// Каждое чтение снимает ровно одно сообщение с вершины стека.
type Display struct {
	base    string
	pending []string
}

// New создаёт дисплей с указанным базовым сообщением.
func New(base string) *Display {
	return &Display{base: base}
}

// Push кладёт одноразовое сообщение на вершину стека.
func (d *Display) Push(message string) {
	d.pending = append(d.pending, message)
}

// Read возвращает последнее добавленное одноразовое сообщение и снимает его со стека.
// Если стек пуст, возвращается базовое сообщение.
func (d *Display) Read() string {
	n := len(d.pending)
	if n == 0 {
		return d.base
	}
	msg := d.pending[n-1]
	d.pending = d.pending[:n-1]
	return msg
}

// SetBase заменяет базовое сообщение.
func (d *Display) SetBase(message string) {
	d.base = message
}

// Base возвращает текущее базовое сообщение.
func (d *Display) Base() string {
	return d.base
}

// Reset сбрасывает все одноразовые сообщения.
func (d *Display) Reset() {
	d.pending = d.pending[:0]
}

// Pending возвращает количество непрочитанных одноразовых сообщений.
func (d *Display) Pending() int {
	return len(d.pending)
}
