package cli

import (
	"fmt"
	"io"
	"sync"

	"expat-market.storefront/internal/usecases"
)

// Output serializes writes from the REPL, toasts and background sync.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o, format, args...)
}

func (o *Output) Println(args ...any) {
	fmt.Fprintln(o, args...)
}

var toastIcons = map[usecases.ToastVariant]string{
	usecases.ToastDefault:     "i",
	usecases.ToastSuccess:     "+",
	usecases.ToastDestructive: "!",
}

// ToastPrinter renders notifications as single lines.
type ToastPrinter struct {
	out *Output
}

func NewToastPrinter(out *Output) *ToastPrinter {
	return &ToastPrinter{out: out}
}

func (p *ToastPrinter) Notify(t usecases.Toast) {
	icon, ok := toastIcons[t.Variant]
	if !ok {
		icon = toastIcons[usecases.ToastDefault]
	}
	if t.Description == "" {
		p.out.Printf("[%s] %s\n", icon, t.Title)
		return
	}
	p.out.Printf("[%s] %s: %s\n", icon, t.Title, t.Description)
}

// Navigator records the last route a container asked for and prints it.
type Navigator struct {
	out *Output

	mu   sync.Mutex
	last string
}

func NewNavigator(out *Output) *Navigator {
	return &Navigator{out: out}
}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	n.last = path
	n.mu.Unlock()
	n.out.Printf("-> %s\n", path)
}

func (n *Navigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
