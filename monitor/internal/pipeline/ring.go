package pipeline

import "math"

// SecondValue усредненное значение канала за одну секунду (NaN, если данных не было)
type SecondValue struct {
	Second int
	Value  float64
}

// Ring кольцевой буфер посекундных значений фиксированной емкости.
// При переполнении вытесняются самые старые записи.
type Ring struct {
	buf   []SecondValue
	start int
	size  int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]SecondValue, capacity)}
}

func (r *Ring) Push(v SecondValue) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *Ring) Len() int { return r.size }

func (r *Ring) Cap() int { return len(r.buf) }

// At возвращает i-ю запись, начиная с самой старой
func (r *Ring) At(i int) SecondValue {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Last возвращает самую свежую запись
func (r *Ring) Last() (SecondValue, bool) {
	if r.size == 0 {
		return SecondValue{}, false
	}
	return r.At(r.size - 1), true
}

// LastSeconds возвращает не-NaN значения за секунды [now-seconds+1, now]
func (r *Ring) LastSeconds(now, seconds int) []float64 {
	lo := now - seconds + 1
	if lo < 0 {
		lo = 0
	}

	vals := make([]float64, 0, seconds)
	for i := 0; i < r.size; i++ {
		e := r.At(i)
		if e.Second < lo || e.Second > now || math.IsNaN(e.Value) {
			continue
		}
		vals = append(vals, e.Value)
	}
	return vals
}

// Values возвращает все не-NaN значения буфера в хронологическом порядке
func (r *Ring) Values() []float64 {
	vals := make([]float64, 0, r.size)
	for i := 0; i < r.size; i++ {
		if v := r.At(i).Value; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
