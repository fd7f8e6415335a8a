package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Snag.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnsureTools provisions the named tools and returns their paths.
func (c *Client) EnsureTools(req EnsureToolsRequest) (*EnsureToolsResponse, error) {
	var resp EnsureToolsResponse
	if err := c.client.Call("Snag.EnsureTools", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMetadata inspects a URL without downloading it.
func (c *Client) FetchMetadata(req MetadataRequest) (*MetadataResponse, error) {
	var resp MetadataResponse
	if err := c.client.Call("Snag.FetchMetadata", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Download runs a download job to completion.
func (c *Client) Download(req DownloadRequest) (*DownloadResponse, error) {
	var resp DownloadResponse
	if err := c.client.Call("Snag.Download", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cut runs a segmentation job to completion.
func (c *Client) Cut(req CutRequest) (*CutResponse, error) {
	var resp CutResponse
	if err := c.client.Call("Snag.Cut", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopJob cancels a live job by id.
func (c *Client) StopJob(jobID string) (*StopJobResponse, error) {
	var resp StopJobResponse
	if err := c.client.Call("Snag.StopJob", StopJobRequest{JobID: jobID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobsList returns recent history records.
func (c *Client) JobsList(limit int) (*JobsListResponse, error) {
	var resp JobsListResponse
	if err := c.client.Call("Snag.JobsList", JobsListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDescribe returns one history record.
func (c *Client) JobDescribe(jobID string) (*JobDescribeResponse, error) {
	var resp JobDescribeResponse
	if err := c.client.Call("Snag.JobDescribe", JobDescribeRequest{JobID: jobID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Snag.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
