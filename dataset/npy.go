package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

const (
	npyMaxHeader = 1 << 16 // 头部长度上限
	npyChunk     = 1 << 16 // 读取数据时每次预分配的元素数
)

// Array 行优先存储的float32多维数组
type Array struct {
	Shape []int
	Data  []float32
}

// Len 元素个数
func (a Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// writeNPY 以NPY 1.0格式（<f4，C顺序）写出数组
// 说明：头部以空格补齐并以换行结尾，使数据起始位置按64字节对齐
func writeNPY(w io.Writer, a Array) error {
	if a.Len() != len(a.Data) {
		return fmt.Errorf("npy: shape %v does not match %d values", a.Shape, len(a.Data))
	}
	dims := make([]string, len(a.Shape))
	for i, d := range a.Shape {
		dims[i] = strconv.Itoa(d)
	}
	shape := strings.Join(dims, ", ")
	if len(a.Shape) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shape)
	pad := 64 - (len(npyMagic)+4+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)
	buf := make([]byte, 4)
	for _, v := range a.Data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var (
	npyDescr   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// readNPY 读取<f4、C顺序的NPY数组
func readNPY(r io.Reader) (Array, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, magic); err != nil {
		return Array{}, fmt.Errorf("%w: npy magic: %v", ErrBadFormat, err)
	}
	if !bytes.Equal(magic[:len(npyMagic)], npyMagic) {
		return Array{}, fmt.Errorf("%w: not an npy file", ErrBadFormat)
	}
	var headerLen int
	switch magic[len(npyMagic)] {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return Array{}, fmt.Errorf("%w: npy header length: %v", ErrBadFormat, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return Array{}, fmt.Errorf("%w: npy header length: %v", ErrBadFormat, err)
		}
		headerLen = int(n)
	default:
		return Array{}, fmt.Errorf("%w: npy version %d", ErrBadFormat, magic[len(npyMagic)])
	}
	if headerLen > npyMaxHeader {
		return Array{}, fmt.Errorf("%w: npy header length %d", ErrBadFormat, headerLen)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return Array{}, fmt.Errorf("%w: npy header: %v", ErrBadFormat, err)
	}
	if m := npyDescr.FindSubmatch(header); m == nil || string(m[1]) != "<f4" {
		return Array{}, fmt.Errorf("%w: npy dtype must be <f4", ErrBadFormat)
	}
	if m := npyFortran.FindSubmatch(header); m == nil || string(m[1]) != "False" {
		return Array{}, fmt.Errorf("%w: fortran order is not supported", ErrBadFormat)
	}
	m := npyShape.FindSubmatch(header)
	if m == nil {
		return Array{}, fmt.Errorf("%w: npy shape missing", ErrBadFormat)
	}
	var a Array
	n := 1
	for _, part := range strings.Split(string(m[1]), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 {
			return Array{}, fmt.Errorf("%w: npy shape %q", ErrBadFormat, m[1])
		}
		if d > 0 && n > math.MaxInt32/d {
			return Array{}, fmt.Errorf("%w: npy shape %q too large", ErrBadFormat, m[1])
		}
		n *= d
		a.Shape = append(a.Shape, d)
	}
	// 按块增长，头部声明的元素数多于实际数据时在读到文件末尾时报错
	a.Data = make([]float32, 0, min(n, npyChunk))
	buf := make([]byte, 4)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return Array{}, fmt.Errorf("%w: npy data: %v", ErrBadFormat, err)
		}
		a.Data = append(a.Data, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	return a, nil
}
