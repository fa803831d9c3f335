package external

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"deepflow.io/agent/internal/config"
)

// domainXML is the tiny subset of a libvirt domain XML document this
// extractor cares about: the domain name and its interface MAC addresses.
type domainXML struct {
	XMLName  xml.Name `xml:"domain"`
	Name     string   `xml:"name"`
	Devices  struct {
		Interfaces []struct {
			Mac struct {
				Address string `xml:"address,attr"`
			} `xml:"mac"`
		} `xml:"interface"`
	} `xml:"devices"`
}

// Domain is one parsed libvirt VM: its name and the MAC addresses of its
// virtual interfaces.
type Domain struct {
	Name string
	MACs []string
}

// LibvirtXmlExtractor watches a directory of libvirt domain XML dumps (as
// written by `virsh dumpxml` redirected to disk, or a libvirt hook) and
// parses them into Domain records the PlatformSynchronizer reports upstream.
// Talking to libvirt's own API/socket directly is out of scope; this type
// only parses whatever XML files are already on disk.
type LibvirtXmlExtractor struct {
	dir string

	mu      sync.RWMutex
	domains []Domain
}

func NewLibvirtXmlExtractor(dir string) *LibvirtXmlExtractor {
	return &LibvirtXmlExtractor{dir: dir}
}

func (e *LibvirtXmlExtractor) Start() error {
	return e.refresh()
}

func (e *LibvirtXmlExtractor) Stop() error {
	return nil
}

func (e *LibvirtXmlExtractor) OnConfigChange(snapshot *config.ChangedConfig) {
	if err := e.refresh(); err != nil {
		logrus.WithError(err).Warn("libvirt xml extractor: refresh failed")
	}
}

// Domains returns the most recently parsed domain list.
func (e *LibvirtXmlExtractor) Domains() []Domain {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Domain, len(e.domains))
	copy(out, e.domains)
	return out
}

func (e *LibvirtXmlExtractor) refresh() error {
	if e.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var domains []Domain
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".xml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			logrus.WithError(err).WithField("file", entry.Name()).Warn("libvirt xml extractor: read failed")
			continue
		}
		var doc domainXML
		if err := xml.Unmarshal(data, &doc); err != nil {
			logrus.WithError(err).WithField("file", entry.Name()).Warn("libvirt xml extractor: parse failed")
			continue
		}
		d := Domain{Name: doc.Name}
		for _, iface := range doc.Devices.Interfaces {
			if iface.Mac.Address != "" {
				d.MACs = append(d.MACs, iface.Mac.Address)
			}
		}
		domains = append(domains, d)
	}

	e.mu.Lock()
	e.domains = domains
	e.mu.Unlock()
	return nil
}
