package wire

import "github.com/NGIOproject/NORNS-sub002/pkg/types"

func encodeDescriptor(w *writer, d types.ResourceDescriptor) {
	w.str(string(d.Kind))
	w.u64(uint64(d.Address))
	w.u64(d.Size)
	w.str(d.NamespaceID)
	w.str(d.Path)
	w.str(d.Hostname)
	w.str(d.Name)
	w.bytes(d.MemoryHandle)
	w.boolean(d.IsCollection)
}

func decodeDescriptor(r *reader) (types.ResourceDescriptor, error) {
	var d types.ResourceDescriptor
	kind, err := r.str()
	if err != nil {
		return d, err
	}
	d.Kind = types.ResourceKind(kind)

	addr, err := r.u64()
	if err != nil {
		return d, err
	}
	d.Address = uintptr(addr)

	if d.Size, err = r.u64(); err != nil {
		return d, err
	}
	if d.NamespaceID, err = r.str(); err != nil {
		return d, err
	}
	if d.Path, err = r.str(); err != nil {
		return d, err
	}
	if d.Hostname, err = r.str(); err != nil {
		return d, err
	}
	if d.Name, err = r.str(); err != nil {
		return d, err
	}
	if d.MemoryHandle, err = r.bytes(); err != nil {
		return d, err
	}
	if d.IsCollection, err = r.boolean(); err != nil {
		return d, err
	}
	return d, nil
}

func encodeCredentials(w *writer, c types.Credentials) {
	w.boolean(c.Present)
	w.u32(c.Triple.UID)
	w.u32(c.Triple.GID)
	w.u32(c.Triple.PID)
}

func decodeCredentials(r *reader) (types.Credentials, error) {
	var c types.Credentials
	var err error
	if c.Present, err = r.boolean(); err != nil {
		return c, err
	}
	if c.Triple.UID, err = r.u32(); err != nil {
		return c, err
	}
	if c.Triple.GID, err = r.u32(); err != nil {
		return c, err
	}
	if c.Triple.PID, err = r.u32(); err != nil {
		return c, err
	}
	return c, nil
}
