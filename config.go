package mqdispatch

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort      = 5672
	DefaultAmqpsPort = 5671
	DefaultTimeout   = 10 // 秒
	clientAPI        = "mqdispatch"
)

type HostConfig struct {
	Host string `json:"host" yaml:"host"`
	Port uint16 `json:"port,omitempty" yaml:"port,omitempty"`
}

// Config 连接配置，同时供AMQP与RocketMQ传输层使用
type Config struct {
	AMQPURL            string       `json:"amqp,omitempty" yaml:"amqp,omitempty"` // 完整的amqp(s)://连接串（可选）
	Hosts              []HostConfig `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Port               uint16       `json:"port" yaml:"port"`
	VirtualHost        string       `json:"virtualHost" yaml:"virtualHost"`
	UserName           string       `json:"username" yaml:"username"`
	Password           string       `json:"password" yaml:"password"`
	RequestedHeartbeat uint16       `json:"requestedHeartbeat" yaml:"requestedHeartbeat"` // 心跳间隔（秒）
	PrefetchCount      uint16       `json:"prefetchCount" yaml:"prefetchCount"`
	Timeout            uint16       `json:"timeout" yaml:"timeout"` // 单个命令的超时（秒）
	// 计算超时时是否包含命令在队列中等待的时间
	IncludeQueueTimeInTimeout bool `json:"includeQueTimeInTimeout" yaml:"includeQueTimeInTimeout"`
	PublisherConfirms         bool `json:"publisherConfirms" yaml:"publisherConfirms"`
	PersistentMessages        bool `json:"persistentMessages" yaml:"persistentMessages"`
	UseBackgroundThreads      bool `json:"useBackgroundThreads" yaml:"useBackgroundThreads"`

	Product            string `json:"product,omitempty" yaml:"product,omitempty"`
	Platform           string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Name               string `json:"name,omitempty" yaml:"name,omitempty"`
	ApplicationVersion string `json:"applicationVersion,omitempty" yaml:"applicationVersion,omitempty"`

	NameServer string `json:"nameServer,omitempty" yaml:"nameServer,omitempty"` // RocketMQ NameServer地址
	GroupName  string `json:"groupName,omitempty" yaml:"groupName,omitempty"`   // RocketMQ生产者组

	LogLevel  string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:               DefaultPort,
		VirtualHost:        "/",
		UserName:           "guest",
		Password:           "guest",
		RequestedHeartbeat: 10,
		PrefetchCount:      50,
		Timeout:            DefaultTimeout,
		PersistentMessages: true,
		LogLevel:           "info",
	}
}

func (c *Config) OperationTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.RequestedHeartbeat) * time.Second
}

// Validate 合并AMQP连接串中的主机信息，并为未指定端口的主机补全端口
func (c *Config) Validate() (err error) {
	if c.AMQPURL != "" {
		if err = c.mergeAMQPURL(); err != nil {
			return
		}
	}
	if len(c.Hosts) == 0 && c.NameServer == "" {
		return fmt.Errorf("%w: host or nameServer must be supplied, e.g. \"host=myserver\"", ErrInvalidConfig)
	}
	for i := range c.Hosts {
		if c.Hosts[i].Port == 0 {
			c.Hosts[i].Port = c.Port
		}
	}
	return
}

func (c *Config) mergeAMQPURL() error {
	u, err := url.Parse(c.AMQPURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: amqp url has no host", ErrInvalidConfig)
	}
	for _, h := range c.Hosts {
		if h.Host == host {
			return nil
		}
	}
	if c.Port == DefaultPort {
		if p, e := strconv.ParseUint(u.Port(), 10, 16); e == nil && p > 0 {
			c.Port = uint16(p)
		} else if strings.EqualFold(u.Scheme, "amqps") {
			c.Port = DefaultAmqpsPort
		}
	}
	if vh := strings.TrimPrefix(u.Path, "/"); vh != "" {
		c.VirtualHost = vh
	}
	if u.User != nil {
		c.UserName = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	c.Hosts = append(c.Hosts, HostConfig{Host: host})
	return nil
}

// HostURL 拼出指定主机的amqp连接串
func (c *Config) HostURL(h HostConfig) string {
	scheme := "amqp"
	if h.Port == DefaultAmqpsPort {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.UserName, c.Password),
		Host:   net.JoinHostPort(h.Host, strconv.Itoa(int(h.Port))),
	}
	// 缺省路径即默认vhost "/"
	if c.VirtualHost != "" && c.VirtualHost != "/" {
		u.Path = "/" + c.VirtualHost
	}
	return u.String()
}

// ClientProperties 建立连接时上报给broker的客户端属性
func (c *Config) ClientProperties() map[string]interface{} {
	appName, appPath := "unknown", "unknown"
	if len(os.Args) > 0 && os.Args[0] != "" {
		appName = filepath.Base(os.Args[0])
		appPath = filepath.Dir(os.Args[0])
	}
	hostname, _ := os.Hostname()
	product, platform, name := c.Product, c.Platform, c.Name
	if product == "" {
		product = appName
	}
	if platform == "" {
		platform = hostname
	}
	if name == "" {
		name = appName
	}
	version := c.ApplicationVersion
	if version == "" {
		version = "unknown"
	}
	return map[string]interface{}{
		"client_api":              clientAPI,
		"product":                 product,
		"platform":                platform,
		"version":                 version,
		"connection_name":         name,
		"application":             appName,
		"application_location":    appPath,
		"machine_name":            hostname,
		"user":                    c.UserName,
		"connected":               time.Now().UTC().Format("2006-01-02 15:04:05Z"),
		"requested_heartbeat":     strconv.Itoa(int(c.RequestedHeartbeat)),
		"timeout":                 strconv.Itoa(int(c.Timeout)),
		"publisher_confirms":      strconv.FormatBool(c.PublisherConfirms),
		"persistent_messages":     strconv.FormatBool(c.PersistentMessages),
		"includeQueTimeInTimeout": strconv.FormatBool(c.IncludeQueueTimeInTimeout),
	}
}

// ParseConnectionString 解析形如 "host=a,b:5673;timeout=5;includeQueTimeInTimeout=true" 的连接串
func ParseConnectionString(s string) (c *Config, err error) {
	c = DefaultConfig()
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: malformed pair %q", ErrInvalidConfig, part)
		}
		if err = c.set(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])); err != nil {
			return nil, err
		}
	}
	err = c.Validate()
	return
}

func (c *Config) set(key, value string) (err error) {
	switch strings.ToLower(key) {
	case "amqp":
		c.AMQPURL = value
	case "host":
		for _, h := range strings.Split(value, ",") {
			var hc HostConfig
			if hc, err = parseHost(strings.TrimSpace(h)); err != nil {
				return
			}
			c.Hosts = append(c.Hosts, hc)
		}
	case "port":
		c.Port, err = parseUint16(key, value)
	case "virtualhost":
		c.VirtualHost = value
	case "username":
		c.UserName = value
	case "password":
		c.Password = value
	case "requestedheartbeat":
		c.RequestedHeartbeat, err = parseUint16(key, value)
	case "prefetchcount":
		c.PrefetchCount, err = parseUint16(key, value)
	case "timeout":
		c.Timeout, err = parseUint16(key, value)
	case "includequetimeintimeout":
		c.IncludeQueueTimeInTimeout, err = parseBool(key, value)
	case "publisherconfirms":
		c.PublisherConfirms, err = parseBool(key, value)
	case "persistentmessages":
		c.PersistentMessages, err = parseBool(key, value)
	case "usebackgroundthreads":
		c.UseBackgroundThreads, err = parseBool(key, value)
	case "product":
		c.Product = value
	case "platform":
		c.Platform = value
	case "name":
		c.Name = value
	case "nameserver":
		c.NameServer = value
	case "groupname":
		c.GroupName = value
	default:
		err = fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
	}
	return
}

func parseHost(s string) (h HostConfig, err error) {
	if s == "" {
		err = fmt.Errorf("%w: empty host", ErrInvalidConfig)
		return
	}
	host, port, e := net.SplitHostPort(s)
	if e != nil {
		h.Host = s
		return
	}
	h.Host = host
	h.Port, err = parseUint16("port", port)
	return
}

func parseUint16(key, value string) (uint16, error) {
	v, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a valid number", ErrInvalidConfig, key, value)
	}
	return uint16(v), nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a valid bool", ErrInvalidConfig, key, value)
	}
	return v, nil
}

// LoadConfig 从yaml或json文件加载配置，未出现的字段保持默认值
func LoadConfig(path string) (c *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	c = DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".json":
		err = jsoniter.Unmarshal(data, c)
	default:
		err = fmt.Errorf("%w: unsupported config file %q", ErrInvalidConfig, path)
	}
	if err != nil {
		return nil, err
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return
}
