package io

import (
	"errors"
	"io"
	"os"
)

const (
	STORAGE_FIRST_HANDLE = 5  // Handles below are the standard devices.
	STORAGE_MAX_HANDLES  = 20 // Handles past are exhausted.
)

const (
	ACCESS_READ       = 0
	ACCESS_WRITE      = 1
	ACCESS_READ_WRITE = 2
)

// Storage maps small integer handles to files under a rooted directory.
// Names cannot escape the root.
type Storage struct {
	Root *os.Root

	files map[int]*os.File
}

// NewStorage opens dir as the storage root.
func NewStorage(dir string) (st *Storage, err error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return
	}

	st = &Storage{Root: root}
	return
}

func (st *Storage) attach(file *os.File) (handle int, err error) {
	if st.files == nil {
		st.files = make(map[int]*os.File)
	}

	for handle = STORAGE_FIRST_HANDLE; handle < STORAGE_MAX_HANDLES; handle++ {
		if _, used := st.files[handle]; !used {
			st.files[handle] = file
			return
		}
	}

	err = errors.Join(ErrHandleExhausted, file.Close())
	handle = 0
	return
}

func (st *Storage) lookup(handle int) (file *os.File, err error) {
	file, ok := st.files[handle]
	if !ok {
		err = ErrHandleInvalid
	}
	return
}

// Open opens an existing file with one of the ACCESS_* modes.
func (st *Storage) Open(name string, access int) (handle int, err error) {
	if st == nil || st.Root == nil {
		err = ErrNoStorage
		return
	}

	var flag int
	switch access & 3 {
	case ACCESS_READ:
		flag = os.O_RDONLY
	case ACCESS_WRITE:
		flag = os.O_WRONLY
	case ACCESS_READ_WRITE:
		flag = os.O_RDWR
	default:
		err = os.ErrInvalid
		return
	}

	file, err := st.Root.OpenFile(name, flag, 0)
	if err != nil {
		return
	}

	return st.attach(file)
}

// Create creates or truncates a file for reading and writing.
func (st *Storage) Create(name string) (handle int, err error) {
	if st == nil || st.Root == nil {
		err = ErrNoStorage
		return
	}

	file, err := st.Root.Create(name)
	if err != nil {
		return
	}

	return st.attach(file)
}

// Close releases a handle.
func (st *Storage) Close(handle int) (err error) {
	file, err := st.lookup(handle)
	if err != nil {
		return
	}

	delete(st.files, handle)
	err = file.Close()
	return
}

// Read reads into data. At the end of the file it returns zero bytes
// and no error.
func (st *Storage) Read(handle int, data []byte) (n int, err error) {
	file, err := st.lookup(handle)
	if err != nil {
		return
	}

	n, err = file.Read(data)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return
}

// Write writes data.
func (st *Storage) Write(handle int, data []byte) (n int, err error) {
	file, err := st.lookup(handle)
	if err != nil {
		return
	}

	n, err = file.Write(data)
	return
}

// Shutdown closes every open handle and the root.
func (st *Storage) Shutdown() (err error) {
	for handle, file := range st.files {
		err = errors.Join(err, file.Close())
		delete(st.files, handle)
	}
	if st.Root != nil {
		err = errors.Join(err, st.Root.Close())
		st.Root = nil
	}
	return
}
